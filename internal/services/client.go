// HTTP client shared by all Bandcamp requests.
//
// Retries on transient failures (connection errors, HTTP 429 and 5xx) are
// delegated to retryablehttp with exponential backoff; auth failures are
// returned immediately so the caller can surface them. A token-bucket rate
// limiter spaces requests to stay inside the service's tolerance.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

// ClientOpts configures the retry and pacing behaviour of a [Client].
type ClientOpts struct {
	MaxRetries      int           // retry attempts beyond the first try
	RequestInterval time.Duration // minimum spacing between requests
	Timeout         time.Duration // per-request timeout, 0 for none
	Logger          *log.Logger
}

// Client wraps retryablehttp with Bandcamp-specific configuration.
type Client struct {
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	userAgent string
}

// retryLogger adapts [log.Logger] to the retryablehttp.LeveledLogger interface.
type retryLogger struct {
	logger *log.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// NewClient creates a Client with the provided options.
func NewClient(opts ClientOpts) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RequestInterval <= 0 {
		opts.RequestInterval = 500 * time.Millisecond
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 60 * time.Second
	if opts.Timeout > 0 {
		rc.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Logger != nil {
		rc.Logger = &retryLogger{logger: opts.Logger}
	} else {
		rc.Logger = nil
	}

	return &Client{
		http:      rc,
		limiter:   rate.NewLimiter(rate.Every(opts.RequestInterval), 1),
		userAgent: defaultUserAgent,
	}
}

// Do performs an HTTP request with the session cookie, waiting on the rate
// limiter first. The caller owns the response body.
func (c *Client) Do(ctx context.Context, method, url, cookieHeader string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody any
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// GetString performs a GET request and returns the response body as a string.
// Non-2xx statuses are returned as errors carrying the status code.
func (c *Client) GetString(ctx context.Context, url, cookieHeader string) (string, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, cookieHeader, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, URL: url}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(data), nil
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// AuthFailure reports whether the status indicates a rejected session.
func (e *StatusError) AuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}
