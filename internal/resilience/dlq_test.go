package resilience

import (
	"errors"
	"testing"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name  string
		entry DLQEntry
		want  bool
	}{
		{"fresh entry", DLQEntry{RetryCount: 0, MaxRetries: 3}, true},
		{"last attempt left", DLQEntry{RetryCount: 2, MaxRetries: 3}, true},
		{"cap reached", DLQEntry{RetryCount: 3, MaxRetries: 3}, false},
		{"replayed past the cap", DLQEntry{RetryCount: 5, MaxRetries: 3}, false},
		{"zero cap never retries", DLQEntry{RetryCount: 0, MaxRetries: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"tagged transient", NewTransientError(errors.New("service unavailable"), 503), "transient"},
		{"reset mid-crawl", errors.New("read tcp: connection reset by peer"), "transient"},
		{"throttled api call", &apiStatusError{status: 429}, "transient"},
		{"feed parse failure", NewParseError("https://drift.example/products.json", "json", errors.New("unexpected EOF")), "permanent"},
		{"validation rejection", NewRejection("keyword-gate", "negative-keyword-match"), "permanent"},
		{"anything else", errors.New("roast_level missing"), "permanent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
