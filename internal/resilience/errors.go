package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError tags a failure the caller may retry: throttling, 5xx
// responses, network trouble. StatusCode is zero when the failure never
// reached HTTP.
type TransientError struct {
	Err        error
	StatusCode int

	// RetryAfter is the server-advised delay before the next attempt,
	// parsed from a Retry-After header. Zero when the server sent none.
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError tags err as retryable, recording the HTTP status when
// one exists.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewThrottleError wraps a rate-limit response, carrying the server-advised
// Retry-After delay so the retry loop can honor it instead of its own backoff.
func NewThrottleError(err error, statusCode int, retryAfter time.Duration) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode, RetryAfter: retryAfter}
}

// RetryAfterOf returns the server-advised retry delay carried by a
// TransientError in the chain, or zero if none was provided.
func RetryAfterOf(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// ParseError indicates a payload that could not be decoded into the expected
// shape (malformed storefront JSON, unreadable HTML). Parse failures are
// permanent for the item but never fatal for the run.
type ParseError struct {
	URL    string
	Format string // "json", "html", "xml"
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s from %s: %v", e.Format, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError wraps a decode failure with the source URL and payload format.
func NewParseError(url, format string, err error) *ParseError {
	return &ParseError{URL: url, Format: format, Err: err}
}

// IsParse returns true if the error (or any error in its chain) is a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// RejectionError carries the outcome of a validation gate that refused an
// item. Stage names the gate and Reasons hold machine-readable codes that
// the rejection ledger records verbatim.
type RejectionError struct {
	Stage   string
	Reasons []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected at %s: %s", e.Stage, strings.Join(e.Reasons, ", "))
}

// NewRejection builds a RejectionError for the given gate and reason codes.
func NewRejection(stage string, reasons ...string) *RejectionError {
	return &RejectionError{Stage: stage, Reasons: reasons}
}

// AsRejection extracts a RejectionError from the chain, if present.
func AsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// transientTexts matches transport failures that arrive as plain strings,
// typically wrapped somewhere below net/http.
var transientTexts = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// statusCarrier is implemented by the API clients' error types, which
// record the upstream HTTP status of a failed call.
type statusCarrier interface {
	HTTPStatus() int
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, an API error whose HTTP status is
// retryable, a network timeout, a dropped connection, or a message matching
// transientTexts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// API clients return typed errors carrying the upstream status; the
	// status decides, so a 404 here never falls through to the text match.
	var sc statusCarrier
	if errors.As(err, &sc) {
		return IsTransientHTTPStatus(sc.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, text := range transientTexts {
		if strings.Contains(msg, text) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is worth a retry:
// request timeout, throttling, and the server-side 5xx family.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
