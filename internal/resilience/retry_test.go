package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoVal_FirstTrySuccess(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), RetryConfig{}, func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_RetriesTransientThenSucceeds(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	val, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("gateway timeout"), 504)
		}
		return "page body", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "page body" {
		t.Errorf("expected recovered value, got %q", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_PermanentErrorNotRetried(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("404 not found")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a permanent error, got %d", calls)
	}
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	calls := 0
	val, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 99, NewTransientError(errors.New("connection reset"), 0)
	})
	if err == nil {
		t.Fatal("expected the last error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if val != 0 {
		t.Errorf("expected zero value after exhaustion, got %d", val)
	}
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	calls := 0
	_, err := DoVal(ctx, cfg, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("reset mid-read"), 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retries after cancellation, got %d calls", calls)
	}
}

func TestDoVal_HonorsRetryAfterHint(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	calls := 0
	start := time.Now()
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewThrottleError(errors.New("too many requests"), 429, 60*time.Millisecond)
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The 60ms server hint must override the ~1ms computed backoff.
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Errorf("expected the sleep to honor the Retry-After hint, slept %v", elapsed)
	}
}

func TestDoVal_OnRetryCalledPerRetry(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry:        func(attempt int, _ error) { attempts = append(attempts, attempt) },
	}

	_, _ = DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(errors.New("flaky"), 0)
	})

	// Two sleeps between three attempts.
	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
}

func TestDo_RetriesLikeDoVal(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(errors.New("broken pipe"), 0)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	cfg := withDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
	})

	bases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 400 * time.Millisecond, // capped
	}
	for attempt, base := range bases {
		got := backoff(cfg, attempt)
		lo := time.Duration(float64(base) * (1 - jitterSpread))
		hi := time.Duration(float64(base) * (1 + jitterSpread))
		if got < lo || got > hi {
			t.Errorf("backoff(attempt=%d) = %v, want within [%v, %v]", attempt, got, lo, hi)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(RetryConfig{})
	def := DefaultRetryConfig()
	if got.MaxAttempts != def.MaxAttempts {
		t.Errorf("expected default MaxAttempts %d, got %d", def.MaxAttempts, got.MaxAttempts)
	}
	if got.InitialBackoff != def.InitialBackoff {
		t.Errorf("expected default InitialBackoff %v, got %v", def.InitialBackoff, got.InitialBackoff)
	}
	if got.MaxBackoff != def.MaxBackoff {
		t.Errorf("expected default MaxBackoff %v, got %v", def.MaxBackoff, got.MaxBackoff)
	}

	// Explicit settings survive.
	got = withDefaults(RetryConfig{MaxAttempts: 7})
	if got.MaxAttempts != 7 {
		t.Errorf("expected explicit MaxAttempts to survive, got %d", got.MaxAttempts)
	}
}

func TestRetryLogger_DoesNotPanic(t *testing.T) {
	log := RetryLogger("fetch", "drift.example")
	log(1, errors.New("i/o timeout"))
}
