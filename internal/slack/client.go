// Package slack is a minimal Slack Web API client covering the two calls
// the notifier needs: posting a channel message and posting a threaded
// reply. The webhook API is not enough here because thread replies need
// the parent message's timestamp, which only chat.postMessage returns.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voicetel/support-autoresponder/internal/config"
	"github.com/voicetel/support-autoresponder/internal/models"
)

const defaultBaseURL = "https://slack.com/api"

type Client struct {
	token         string
	baseURL       string
	httpClient    *http.Client
	retryAttempts int
}

func NewClient(cfg config.SlackConfig) *Client {
	return &Client{
		token:   cfg.BotToken,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration,
		},
		retryAttempts: cfg.RetryAttempts,
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

type postMessageRequest struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// PostMessage posts a message to the given channel and returns a reference
// to it so follow-ups can be threaded under it.
func (c *Client) PostMessage(ctx context.Context, channel, fallbackText string, blocks []Block) (*models.SlackRef, error) {
	req := postMessageRequest{
		Channel: channel,
		Text:    fallbackText,
		Blocks:  blocks,
	}

	resp, err := c.call(ctx, "chat.postMessage", req)
	if err != nil {
		return nil, err
	}
	return &models.SlackRef{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

// PostThreadReply posts text as a child of an earlier parent message.
func (c *Client) PostThreadReply(ctx context.Context, channel, threadTS, text string) error {
	req := postMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
	}

	_, err := c.call(ctx, "chat.postMessage", req)
	return err
}

// AuthTest verifies the bot token. Used by -check-connections.
func (c *Client) AuthTest(ctx context.Context) error {
	_, err := c.call(ctx, "auth.test", struct{}{})
	return err
}

func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	attempts := c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * time.Second):
			}
		}

		resp, err := c.doCall(ctx, method, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("slack %s failed after %d attempts: %w", method, attempts, lastErr)
}

func (c *Client) doCall(ctx context.Context, method string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse slack response: %w", err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("slack API error: %s", apiResp.Error)
	}

	return &apiResp, nil
}
