// Package dashboard is a typed client for the dashboard's HTTP API
// (spec.md §6.1): projects, milestones, tasks, repositories, and bulk
// task creation.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// maxResponseSize limits a dashboard response body to prevent memory
// exhaustion from a misbehaving server.
const maxResponseSize = 10 * 1024 * 1024

// Client talks to the dashboard's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	maxRetries uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = logger }
}

// WithMaxRetries overrides the default retry count for idempotent calls.
func WithMaxRetries(n uint64) ClientOption {
	return func(cl *Client) { cl.maxRetries = n }
}

// NewClient builds a Client for baseURL. The circuit breaker trips after
// 5 consecutive failures and probes again after 10s, mirroring the
// transport package's broker breaker.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dashboard-client",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// Error is returned for non-2xx dashboard responses.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("dashboard: unexpected status %d: %s", e.StatusCode, e.Body)
}

// doJSON issues an HTTP request with a JSON body (if non-nil), decodes a
// JSON response into out (if non-nil), and retries transient failures
// with exponential backoff through the circuit breaker.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("dashboard: encode request: %w", err)
		}
		payload = b
	}

	operation := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 500 {
				return nil, &Error{StatusCode: resp.StatusCode, Body: string(raw)}
			}
			if resp.StatusCode >= 400 {
				return nil, backoff.Permanent(&Error{StatusCode: resp.StatusCode, Body: string(raw)})
			}
			if out != nil && len(raw) > 0 {
				if err := json.Unmarshal(raw, out); err != nil {
					return nil, backoff.Permanent(fmt.Errorf("dashboard: decode response: %w", err))
				}
			}
			return nil, nil
		})
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.logger.Warn("dashboard request failed", "method", method, "path", path, "error", err)
		return err
	}
	return nil
}
