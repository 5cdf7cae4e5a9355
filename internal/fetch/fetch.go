// Package fetch is the polite HTTP client used for everything that touches a
// roaster's own site: per-host adaptive rate limiting, bounded retries that
// honor Retry-After, response size caps, and anti-bot block detection.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/beanatlas/coffee-cli/internal/resilience"
)

// Options configures the fetch client.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64
}

// Page is a fetched response with block detection applied.
type Page struct {
	URL     string // final URL after redirects
	Status  int
	Header  http.Header
	Body    []byte
	Blocked bool
	Block   BlockType
}

// StatusError reports a terminal non-2xx response that is not worth retrying.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// IsNotFound returns true for 404/410 responses, which endpoint-fallback
// callers treat as "try the next route".
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone)
}

// Client fetches pages from roaster sites with politeness controls.
type Client struct {
	http     *http.Client
	opts     Options
	limiters *hostLimiters
}

// New creates a fetch client. Zero option values get defaults.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 4
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "coffee-cli/1.0"
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: newHostLimiters(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Get fetches rawURL, retrying transient failures. Non-2xx terminal statuses
// return a StatusError. 2xx bodies are scanned for anti-bot blocks; Blocked
// pages are returned without error so callers can decide how to degrade.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	return c.get(ctx, rawURL, "text/html,application/xhtml+xml,*/*;q=0.8")
}

// GetJSON fetches rawURL and decodes the body into out. Decode failures are
// ParseErrors: permanent for the endpoint, never retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	page, err := c.get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(page.Body, out); err != nil {
		return resilience.NewParseError(rawURL, "json", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string) (*Page, error) {
	host := hostOf(rawURL)
	if host == "" {
		return nil, eris.Errorf("fetch: invalid url %q", rawURL)
	}
	limiter := c.limiters.get(host)

	cfg := resilience.RetryConfig{
		MaxAttempts:    c.opts.MaxAttempts,
		InitialBackoff: c.opts.InitialBackoff,
		OnRetry:        resilience.RetryLogger("fetch", host),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Page, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", accept)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			limiter.OnRateLimit(host)
			return nil, resilience.NewThrottleError(
				eris.Errorf("fetch: http 429 from %s", rawURL),
				resp.StatusCode,
				parseRetryAfter(resp.Header),
			)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: http %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: read body from %s", rawURL)
		}
		if int64(len(body)) > c.opts.MaxBodyBytes {
			return nil, eris.Errorf("fetch: body from %s exceeds %d bytes", rawURL, c.opts.MaxBodyBytes)
		}

		limiter.OnSuccess()

		page := &Page{
			URL:    finalURL,
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   body,
		}
		page.Blocked, page.Block = DetectBlock(resp, finalURL, body)
		return page, nil
	})
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// parseRetryAfter reads a Retry-After header as either delta-seconds or an
// HTTP date. Hostile values are capped at two minutes.
func parseRetryAfter(h http.Header) time.Duration {
	const maxWait = 2 * time.Minute

	raw := h.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		d := time.Duration(secs) * time.Second
		if d < 0 {
			return 0
		}
		return min(d, maxWait)
	}
	if at, err := http.ParseTime(raw); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		return min(d, maxWait)
	}
	return 0
}
