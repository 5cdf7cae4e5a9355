package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beanatlas/coffee-cli/internal/config"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/store"
)

func TestNewChecker_Interval(t *testing.T) {
	col := NewCollector(&mockStore{})
	al := NewAlerter(config.MonitoringConfig{})

	c := NewChecker(col, al, config.MonitoringConfig{CheckIntervalSecs: 90})
	assert.Equal(t, 90*time.Second, c.interval)

	c = NewChecker(col, al, config.MonitoringConfig{})
	assert.Equal(t, defaultCheckInterval, c.interval, "zero interval falls back to the default")
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(&mockStore{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond) // let the startup sweep land
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept looping after cancel")
	}
}

func TestChecker_InitialCheckFiresAlert(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	st := &mockStore{
		summary: &store.RunSummary{
			Total: 10,
			ByStatus: map[string]int{
				string(model.RunStatusComplete): 2,
				string(model.RunStatusFailed):   8,
			},
			ByPath: map[string]int{},
		},
	}
	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		FailureRateThreshold: 0.10,
		CheckIntervalSecs:    3600,
		LookbackWindowHours:  24,
	}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// The first check runs before the first tick, so the alert arrives
	// well inside the hour-long interval.
	assert.Eventually(t, func() bool { return received.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
