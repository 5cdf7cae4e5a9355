// Package jina provides a client for the Jina AI reader API, used to pull
// clean page text for candidates whose stored HTML is missing or unusable.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://r.jina.ai"

// maxAttempts bounds the client's own retry loop. Failures that survive it
// surface to the caller, whose replay machinery can try again much later.
const maxAttempts = 3

// Client defines the Jina AI Reader operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns the markdown content.
	Read(ctx context.Context, targetURL string, opts ...ReadOption) (*ReadResponse, error)
}

// ReadResponse is the parsed Jina API response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	Usage   ReadUsage `json:"usage"`
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// APIError is returned when the reader still answers non-OK after the
// client's own retries are spent.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus reports the upstream status code for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ReadOption configures a single read request.
type ReadOption func(*readOpts)

type readOpts struct {
	targetSelector string
	removeSelector string
}

// WithTargetSelector restricts extraction to elements matching a CSS
// selector (e.g. "main,.product").
func WithTargetSelector(selector string) ReadOption {
	return func(o *readOpts) {
		o.targetSelector = selector
	}
}

// WithRemoveSelector strips elements matching a CSS selector before
// extraction. Product pages bury the actual description under navigation,
// carts and recommendation strips; "nav,header,footer" removes most of it.
func WithRemoveSelector(selector string) ReadOption {
	return func(o *readOpts) {
		o.removeSelector = selector
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithBackoff sets the delay before the first retry. Later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) { c.backoff = d }
}

type httpClient struct {
	apiKey  string
	baseURL string
	backoff time.Duration
	http    *http.Client
}

// NewClient creates a new Jina AI Reader client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		backoff: time.Second,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string, opts ...ReadOption) (*ReadResponse, error) {
	ro := &readOpts{}
	for _, opt := range opts {
		opt(ro)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")
	if ro.targetSelector != "" {
		req.Header.Set("X-Target-Selector", ro.targetSelector)
	}
	if ro.removeSelector != "" {
		req.Header.Set("X-Remove-Selector", ro.removeSelector)
	}

	body, err := c.fetch(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read")
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}
	return &result, nil
}

// fetch runs the request with up to maxAttempts tries. Transport failures,
// throttling and server-side statuses wait a doubling delay and go again;
// any other status surfaces immediately as an *APIError.
func (c *httpClient) fetch(ctx context.Context, req *http.Request) ([]byte, error) {
	delay := c.backoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		body, status, err := c.once(ctx, req)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusOK:
			return body, nil
		default:
			lastErr = &APIError{StatusCode: status, Body: string(body)}
			if !retryableStatus(status) {
				return nil, lastErr
			}
		}

		if attempt == maxAttempts {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// once performs a single attempt against a clone of req, so a retry never
// reuses a consumed request.
func (c *httpClient) once(ctx context.Context, req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}

// Reader statuses worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}
