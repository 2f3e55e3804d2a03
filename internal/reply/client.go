package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyPrompt is returned when a prompt has no non-whitespace content.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Client sends user prompts to the reply webhook.
type Client struct {
	url        string
	sessionID  string
	maxRetries int
	backoff    func(attempt int) time.Duration
	httpClient *http.Client
	stats      *Stats
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many attempts are made for retryable failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff overrides the delay between attempts.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoff = fn }
}

// WithStats records call latencies into s.
func WithStats(s *Stats) Option {
	return func(c *Client) { c.stats = s }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(url, sessionID string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:        url,
		sessionID:  sessionID,
		maxRetries: MaxRetries,
		backoff:    Backoff,
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.stats == nil {
		c.stats = NewStats(time.Hour)
	}
	c.log = c.log.With("component", "reply")
	return c
}

// Stats returns the client's call statistics.
func (c *Client) Stats() *Stats {
	return c.stats
}

type webhookRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
}

// Ask sends prompt and returns the reply to display. The returned Reply is
// always displayable, even alongside a non-nil error: failures map to the
// fixed fallback texts. Only ErrEmptyPrompt comes with a zero Reply.
func (c *Client) Ask(ctx context.Context, prompt string) (Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return Reply{}, ErrEmptyPrompt
	}

	var lastErr error
	for attempt := range c.maxRetries {
		start := time.Now()
		body, err := c.post(ctx, prompt)
		elapsed := time.Since(start)

		if err == nil {
			r, derr := Decode(body)
			c.stats.Record(elapsed, r.Shape, derr != nil)
			if derr != nil {
				c.log.Warn("undecodable reply", "error", derr, "body", truncate(string(body), 200))
				return r, fmt.Errorf("decode reply: %w", derr)
			}
			if r.Fallback {
				c.log.Warn("reply has no recognised shape", "body", truncate(string(body), 200))
			}
			return r, nil
		}

		c.stats.Record(elapsed, ShapeUnknown, true)
		lastErr = err
		if !IsRetryable(err) || attempt == c.maxRetries-1 {
			break
		}

		wait := c.backoff(attempt)
		c.log.Warn("retrying reply request", "attempt", attempt+1, "wait", wait.String(), "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return unreachable(), ctx.Err()
		}
	}

	// A service that keeps failing may still answer with a usable body.
	var re *RetryableError
	if errors.As(lastErr, &re) {
		if r, derr := Decode(re.Body); derr == nil {
			return r, lastErr
		}
	}
	c.log.Error("reply request failed", "error", lastErr)
	return unreachable(), lastErr
}

// post returns the response body for any non-retryable status. Bodies of
// other non-2xx responses are still decoded by the caller.
func (c *Client) post(ctx context.Context, prompt string) ([]byte, error) {
	reqBody, err := json.Marshal(webhookRequest{Prompt: prompt, SessionID: c.sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reply webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
