package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// jitterSpread randomizes each backoff sleep by up to a quarter either way,
// so parallel site workers recovering from the same outage don't retry in
// lockstep against one host.
const jitterSpread = 0.25

// RetryConfig tunes the retry loop. Backoff doubles per attempt from
// InitialBackoff up to MaxBackoff; zero values fall back to
// DefaultRetryConfig.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 means no retries.
	MaxAttempts int

	// InitialBackoff is the sleep before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubled sleeps.
	MaxBackoff time.Duration

	// OnRetry, when set, runs before each backoff sleep with the 1-based
	// number of the attempt that just failed and its error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits page fetches and provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// DoVal runs fn until it succeeds, returns a non-transient error, the
// context ends, or MaxAttempts is spent. Only errors IsTransient accepts are
// retried. A Retry-After hint carried by the error stretches the sleep when
// it exceeds the computed backoff, so a throttling host is not hit early.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(lastErr) || attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		delay := backoff(cfg, attempt)
		if hint := RetryAfterOf(lastErr); hint > delay {
			delay = hint
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Do is DoVal for functions without a return value.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func withDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return cfg
}

// backoff returns the jittered sleep before retrying after the given
// attempt. attempt is 1-based: the sleep after the first try starts at
// InitialBackoff and doubles from there.
func backoff(cfg RetryConfig, attempt int) time.Duration {
	d := cfg.InitialBackoff
	for i := 1; i < attempt && d < cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > cfg.MaxBackoff {
		d = cfg.MaxBackoff
	}
	spread := 1 + jitterSpread*(2*rand.Float64()-1)
	return time.Duration(float64(d) * spread)
}

// RetryLogger returns an OnRetry callback that logs each retry with the
// component name and the target being retried, typically a host or URL.
func RetryLogger(component, target string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying after transient failure",
			zap.String("component", component),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
