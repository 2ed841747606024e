// Package server exposes the HTTP surface: webhook receivers, the manual
// processing endpoint, health, and metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/voicetel/support-autoresponder/internal/gmail"
	"github.com/voicetel/support-autoresponder/internal/logging"
	"github.com/voicetel/support-autoresponder/internal/metrics"
	"github.com/voicetel/support-autoresponder/internal/models"
	"github.com/voicetel/support-autoresponder/internal/ticket"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// TicketRunner runs one ticket through the processing pipeline.
type TicketRunner interface {
	Run(ctx context.Context, t models.Ticket, opts models.Options) (*models.PipelineResult, error)
}

// MessageFetcher resolves a Gmail push cursor into the messages that
// arrived. Nil when Gmail is not configured.
type MessageFetcher interface {
	MessagesSince(ctx context.Context, historyID uint64) ([]*gmailapi.Message, error)
}

type Server struct {
	pipe    TicketRunner
	fetcher MessageFetcher
	metrics *metrics.Metrics
	logger  *logging.Logger
	timeout time.Duration
}

func New(pipe TicketRunner, fetcher MessageFetcher, m *metrics.Metrics, logger *logging.Logger, timeout time.Duration) *Server {
	return &Server{
		pipe:    pipe,
		fetcher: fetcher,
		metrics: m,
		logger:  logger,
		timeout: timeout,
	}
}

// Handler returns the routed HTTP handler with logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook/helpscout", s.handleHelpScoutWebhook)
	mux.HandleFunc("POST /webhook/gmail", s.handleGmailWebhook)
	mux.HandleFunc("POST /process-ticket", s.handleProcessTicket)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.withObservability(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleHelpScoutWebhook accepts a ticket payload in HelpScout's webhook
// shape and runs it with default options.
func (s *Server) handleHelpScoutWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	t := ticket.FromPayload(payload, models.SourceHelpScout)
	if _, err := s.pipe.Run(ctx, t, models.Options{}); err != nil {
		s.logger.LogError("helpscout webhook processing failed", err, "ticket_id", t.ID)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	fmt.Fprint(w, "OK")
}

// handleGmailWebhook accepts a Gmail Pub/Sub push notification, resolves
// the history cursor to the messages that arrived, and runs each one.
func (s *Server) handleGmailWebhook(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		http.Error(w, "gmail is not configured", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	notification, err := gmail.ParsePushNotification(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	messages, err := s.fetcher.MessagesSince(ctx, notification.HistoryID)
	if err != nil {
		s.logger.LogError("failed to resolve gmail history", err,
			"history_id", notification.HistoryID)
		http.Error(w, "failed to fetch messages", http.StatusInternalServerError)
		return
	}

	for _, msg := range messages {
		t := gmail.TicketFromMessage(msg)
		if _, err := s.pipe.Run(ctx, t, models.Options{}); err != nil {
			s.logger.LogError("gmail message processing failed", err, "ticket_id", t.ID)
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
	}

	fmt.Fprint(w, "OK")
}

// handleProcessTicket accepts an arbitrary ticket payload with optional
// processing flags and returns the full pipeline result as JSON.
func (s *Server) handleProcessTicket(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := parseOptions(payload, r.Header)

	ctx, cancel := s.requestContext(r)
	defer cancel()

	t := ticket.FromPayload(payload, models.SourceManual)
	result, err := s.pipe.Run(ctx, t, opts)
	if err != nil {
		s.logger.LogError("manual ticket processing failed", err, "ticket_id", t.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseOptions reads processing flags from the payload body, with header
// equivalents for callers that cannot modify the body.
func parseOptions(payload map[string]any, header http.Header) models.Options {
	var opts models.Options

	if v, ok := payload["skip_email"].(bool); ok {
		opts.SkipEmail = v
	}
	if v, ok := payload["skip_ai"].(bool); ok {
		opts.SkipAI = v
	}
	if draft, ok := payload["draft"].(map[string]any); ok {
		if text, ok := draft["text"].(string); ok {
			opts.Draft = &text
		}
	}

	if header.Get("x-skip-email") == "1" {
		opts.SkipEmail = true
	}
	if header.Get("x-skip-ai") == "1" {
		opts.SkipAI = true
	}

	return opts
}

func decodePayload(r *http.Request) (map[string]any, error) {
	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.metrics.HTTPRequests.WithLabelValues(
			r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		s.logger.Verbose("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
