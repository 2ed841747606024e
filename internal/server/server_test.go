package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/metrics"
	"github.com/voicetel/support-autoresponder/internal/models"
)

type fakeRunner struct {
	err     error
	tickets []models.Ticket
	opts    []models.Options
}

func (f *fakeRunner) Run(_ context.Context, t models.Ticket, opts models.Options) (*models.PipelineResult, error) {
	f.tickets = append(f.tickets, t)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PipelineResult{
		OK:       true,
		TicketID: t.ID,
		UsedAI:   !opts.SkipAI && opts.Draft == nil,
	}, nil
}

type fakeFetcher struct {
	err       error
	messages  []*gmailapi.Message
	historyID uint64
}

func (f *fakeFetcher) MessagesSince(_ context.Context, historyID uint64) ([]*gmailapi.Message, error) {
	f.historyID = historyID
	return f.messages, f.err
}

func newTestServer(runner *fakeRunner, fetcher MessageFetcher) http.Handler {
	logger := logging.NewLogger("text", false, io.Discard)
	return New(runner, fetcher, metrics.New(), logger, 5*time.Second).Handler()
}

func TestHealth(t *testing.T) {
	h := newTestServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHelpScoutWebhook(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, nil)

	body := `{"id":"42","subject":"Login issue","customer":{"name":"Ana","email":"a@x.com"},"messages":[{"body":"help"}]}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/helpscout", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	require.Len(t, runner.tickets, 1)
	got := runner.tickets[0]
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, models.SourceHelpScout, got.Source)
	assert.Equal(t, models.Customer{Name: "Ana", Email: "a@x.com"}, got.Customer)
	assert.Equal(t, models.Options{}, runner.opts[0])
}

func TestHelpScoutWebhookPipelineFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	h := newTestServer(runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/helpscout", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHelpScoutWebhookBadJSON(t *testing.T) {
	h := newTestServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/helpscout", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func pushBody(t *testing.T, historyID uint64) string {
	t.Helper()
	inner, err := json.Marshal(map[string]any{
		"emailAddress": "support@x.com",
		"historyId":    historyID,
	})
	require.NoError(t, err)
	env, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data": base64.StdEncoding.EncodeToString(inner),
		},
	})
	require.NoError(t, err)
	return string(env)
}

func TestGmailWebhook(t *testing.T) {
	runner := &fakeRunner{}
	fetcher := &fakeFetcher{messages: []*gmailapi.Message{
		{
			Id: "m1",
			Payload: &gmailapi.MessagePart{
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "Subject", Value: "Hi"},
					{Name: "From", Value: "Ana <a@x.com>"},
				},
			},
		},
	}}
	h := newTestServer(runner, fetcher)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gmail", strings.NewReader(pushBody(t, 9001))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(9001), fetcher.historyID)

	require.Len(t, runner.tickets, 1)
	assert.Equal(t, "m1", runner.tickets[0].ID)
	assert.Equal(t, models.SourceGmail, runner.tickets[0].Source)
	assert.Equal(t, "a@x.com", runner.tickets[0].Customer.Email)
}

func TestGmailWebhookUnconfigured(t *testing.T) {
	h := newTestServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gmail", strings.NewReader(pushBody(t, 1))))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGmailWebhookBadEnvelope(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeFetcher{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gmail", strings.NewReader(`{"message":{}}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGmailWebhookHistoryFailure(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeFetcher{err: errors.New("history gone")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gmail", strings.NewReader(pushBody(t, 1))))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProcessTicket(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, nil)

	body := `{"subject":"Help","customer_name":"Bo","customer_email":"b@x.com","messages":[{"text":"hi"}]}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-ticket", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result models.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.True(t, result.UsedAI)
	assert.NotEmpty(t, result.TicketID, "missing payload id gets a generated one")

	require.Len(t, runner.tickets, 1)
	assert.Equal(t, models.SourceManual, runner.tickets[0].Source)
	assert.Equal(t, models.Customer{Name: "Bo", Email: "b@x.com"}, runner.tickets[0].Customer)
}

func TestProcessTicketBodyFlags(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, nil)

	body := `{"skip_email":true,"skip_ai":true,"draft":{"text":"use this"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-ticket", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.opts, 1)
	opts := runner.opts[0]
	assert.True(t, opts.SkipEmail)
	assert.True(t, opts.SkipAI)
	require.NotNil(t, opts.Draft)
	assert.Equal(t, "use this", *opts.Draft)
}

func TestProcessTicketHeaderFlags(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/process-ticket", strings.NewReader(`{}`))
	req.Header.Set("x-skip-email", "1")
	req.Header.Set("x-skip-ai", "1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.opts, 1)
	assert.True(t, runner.opts[0].SkipEmail)
	assert.True(t, runner.opts[0].SkipAI)
}

func TestProcessTicketHeaderFlagsIgnoreOtherValues(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/process-ticket", strings.NewReader(`{}`))
	req.Header.Set("x-skip-email", "true")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Len(t, runner.opts, 1)
	assert.False(t, runner.opts[0].SkipEmail, "only the literal \"1\" enables the flag")
}

func TestProcessTicketPipelineFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("kb exploded")}
	h := newTestServer(runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process-ticket", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["error"], "kb exploded")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeRunner{}, nil)

	// Generate one request so a counter exists
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autoresponder_http_requests_total")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process-ticket", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
