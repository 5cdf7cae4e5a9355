package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdaptiveLimiter_OnSuccess_IncreasesRate(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnSuccess()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)

	lim.OnSuccess()
	assert.InDelta(t, 14.4, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_OnRateLimit_DecreasesRate(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnRateLimit("roaster.example.com")
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.1)

	lim.OnRateLimit("roaster.example.com")
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_OnSuccess_CapsAt2x(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	for range 20 {
		lim.OnSuccess()
	}

	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_OnRateLimit_FloorAtQuarter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	for range 10 {
		lim.OnRateLimit("roaster.example.com")
	}

	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_Wait_ContextCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(0.001, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}

func TestHostLimiters_OnePerHost(t *testing.T) {
	hl := newHostLimiters(2, 4)

	a1 := hl.get("alpha.example.com")
	a2 := hl.get("alpha.example.com")
	b := hl.get("beta.example.com")

	assert.Same(t, a1, a2, "same host must share one limiter")
	assert.NotSame(t, a1, b, "hosts must not share limiters")

	// Tuning one host leaves the other alone.
	a1.OnRateLimit("alpha.example.com")
	assert.InDelta(t, 1.0, float64(a1.Limit()), 0.01)
	assert.InDelta(t, 2.0, float64(b.Limit()), 0.01)
}
