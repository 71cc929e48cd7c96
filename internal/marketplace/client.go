package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

// Endpoint is the gallery query URL.
const Endpoint = "https://marketplace.visualstudio.com/_apis/public/gallery/extensionquery"

const (
	contentType  = "application/json"
	acceptHeader = "application/json;api-version=3.0-preview.1"
)

// Common errors.
var (
	// ErrStopped is returned when Stop was observed before the response was
	// processed. It is not a failure; callers should treat it as "no records".
	ErrStopped = errors.New("marketplace: search stopped")

	ErrServerError = errors.New("marketplace: server error")
)

// StatusError reports a non-2xx gallery response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace: unexpected status: %s", e.Status)
}

// ParseError reports a gallery response whose shape did not match the
// expected structure. It is distinct from network failures; no partial
// record list accompanies it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("marketplace: malformed response: %s", e.Reason)
}

// Options configures the search client.
type Options struct {
	// Endpoint overrides the gallery URL. Default: Endpoint.
	Endpoint string

	// Timeout for one query attempt.
	// Default: 10s
	Timeout time.Duration

	// RetryAttempts is the number of retries on transport errors and 5xx
	// responses before the failure is surfaced.
	// Default: 2
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 5s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Endpoint:        Endpoint,
		Timeout:         10 * time.Second,
		RetryAttempts:   2,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 5 * time.Second,
	}
}

// Client issues gallery searches for one search session. A Client holds a
// single-slot stop flag; create one per screen or command invocation.
type Client struct {
	client  *http.Client
	opts    Options
	stopped atomic.Bool
}

// NewClient creates a search client with the given options.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = Endpoint
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.RetryMaxBackoff == 0 {
		opts.RetryMaxBackoff = 5 * time.Second
	}

	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Stop requests cancellation of the in-flight search. Safe to call from any
// goroutine. The next Search call re-arms the client.
func (c *Client) Stop() {
	c.stopped.Store(true)
}

// Search fetches one page of gallery results for q. On success it returns
// every record of that page; it never auto-paginates. A search interrupted
// by Stop returns ErrStopped and no records.
func (c *Client) Search(ctx context.Context, q Query) ([]Extension, error) {
	// Each call starts a fresh cancellable attempt.
	c.stopped.Store(false)

	body, err := json.Marshal(buildPayload(q))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	data, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	// Best-effort cancellation: if the response already fully arrived, the
	// flag wins here but the network exchange itself cannot be undone.
	if c.stopped.Load() {
		return nil, ErrStopped
	}

	return parseResults(data)
}

// post issues the query with retry on transport errors and 5xx responses.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			if c.stopped.Load() {
				return nil, ErrStopped
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", acceptHeader)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		return data, nil
	}

	return nil, fmt.Errorf("query failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
