// Package fetch provides the HTTP retrieval layer: sequential GETs with
// bounded retry and a fixed overall timeout. Retries are invisible to
// callers; only the final success or failure is observed.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jonesrussell/campuscnr/internal/logger"
)

// maxResponseBodyBytes limits the size of fetched responses.
const maxResponseBodyBytes = 50 * 1024 * 1024 // 50 MB

// Response is the observable result of a successful GET.
type Response struct {
	StatusCode int
	// LastModified is the parsed Last-Modified header, nil when the
	// header is absent or unparseable.
	LastModified *time.Time
	Body         []byte
}

// Getter retrieves a URL. Implementations handle retry internally.
type Getter interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Config configures the fetch client.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	UserAgent      string
}

// Client is a Getter backed by net/http with exponential backoff on
// transient failures. Server errors (5xx) and transport errors are
// retried; client errors (4xx) are not.
type Client struct {
	http       *http.Client
	maxRetries uint64
	initial    time.Duration
	userAgent  string
	log        logger.Interface
}

// New creates a fetch client.
func New(cfg Config, log logger.Interface) *Client {
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: uint64(cfg.MaxRetries),
		initial:    cfg.BackoffInitial,
		userAgent:  cfg.UserAgent,
		log:        log,
	}
}

// Get fetches the URL, retrying transient failures with exponential
// backoff up to the configured retry budget.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var resp *Response

	operation := func() error {
		var err error
		resp, err = c.getOnce(ctx, url)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx),
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// getOnce performs a single GET attempt.
func (c *Client) getOnce(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request for %s: %w", url, err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed, may retry", "url", url, "error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		c.log.Debug("server error, may retry", "url", url, "status", httpResp.StatusCode)
		return nil, fmt.Errorf("server error fetching %s: status %d", url, httpResp.StatusCode)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, backoff.Permanent(
			fmt.Errorf("failed to fetch %s: status %d", url, httpResp.StatusCode),
		)
	}

	return &Response{
		StatusCode:   httpResp.StatusCode,
		LastModified: parseLastModified(httpResp.Header.Get("Last-Modified")),
		Body:         body,
	}, nil
}

// parseLastModified parses an HTTP date header value, returning nil when
// the value is absent or malformed.
func parseLastModified(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}

// GetJSON fetches the URL and unmarshals the response body into v.
func GetJSON(ctx context.Context, g Getter, url string, v any) error {
	resp, err := g.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
