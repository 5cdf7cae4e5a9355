package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/config"
)

func TestAlerter_Evaluate(t *testing.T) {
	allThresholds := config.MonitoringConfig{
		FailureRateThreshold:    0.10,
		DLQDepthThreshold:       50,
		EnrichmentCallThreshold: 500,
	}

	tests := []struct {
		name string
		cfg  config.MonitoringConfig
		snap MetricsSnapshot
		want []AlertType
	}{
		{
			name: "healthy window trips nothing",
			cfg:  allThresholds,
			snap: MetricsSnapshot{
				RunsTotal: 100, RunsComplete: 95, RunsFailed: 5,
				RunFailRate: 0.05, DLQDepth: 3, EnrichmentCalls: 120,
			},
			want: nil,
		},
		{
			name: "failure rate over threshold",
			cfg:  allThresholds,
			snap: MetricsSnapshot{
				RunsTotal: 20, RunsComplete: 12, RunsFailed: 8, RunFailRate: 0.4,
			},
			want: []AlertType{AlertRunFailureRate},
		},
		{
			name: "dead letter backlog",
			cfg:  allThresholds,
			snap: MetricsSnapshot{DLQDepth: 73},
			want: []AlertType{AlertDLQBacklog},
		},
		{
			name: "enrichment surge",
			cfg:  allThresholds,
			snap: MetricsSnapshot{
				RunsTotal: 50, RunsComplete: 48, RunsFailed: 2,
				RunFailRate: 0.04, EnrichmentCalls: 1200,
			},
			want: []AlertType{AlertEnrichmentSurge},
		},
		{
			name: "every threshold breached at once",
			cfg:  allThresholds,
			snap: MetricsSnapshot{
				RunsTotal: 20, RunsComplete: 10, RunsFailed: 10,
				RunFailRate: 0.5, DLQDepth: 80, EnrichmentCalls: 900,
			},
			want: []AlertType{AlertRunFailureRate, AlertDLQBacklog, AlertEnrichmentSurge},
		},
		{
			name: "too few runs for a rate verdict",
			cfg:  allThresholds,
			snap: MetricsSnapshot{
				RunsTotal: 3, RunsComplete: 1, RunsFailed: 2, RunFailRate: 0.666,
			},
			want: nil,
		},
		{
			name: "zero thresholds disable every check",
			cfg:  config.MonitoringConfig{},
			snap: MetricsSnapshot{
				RunsTotal: 20, RunsComplete: 2, RunsFailed: 18,
				RunFailRate: 0.9, DLQDepth: 999, EnrichmentCalls: 99999,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.snap.LookbackHours = 24
			alerts := NewAlerter(tt.cfg).Evaluate(&tt.snap)

			var got []AlertType
			for _, a := range alerts {
				got = append(got, a.Type)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestAlerter_Evaluate_AlertContents(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:    0.10,
		DLQDepthThreshold:       50,
		EnrichmentCallThreshold: 500,
	})

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsTotal: 20, RunsComplete: 12, RunsFailed: 8, RunFailRate: 0.4,
		DLQDepth:        73,
		EnrichmentCalls: 1200,
		LookbackHours:   24,
	})
	require.Len(t, alerts, 3)

	byType := make(map[AlertType]Alert, len(alerts))
	for _, al := range alerts {
		byType[al.Type] = al
	}

	rate := byType[AlertRunFailureRate]
	assert.Equal(t, "high", rate.Severity)
	assert.Contains(t, rate.Message, "40.0%")
	assert.Contains(t, rate.Message, "8 failed / 20 finished")

	dlq := byType[AlertDLQBacklog]
	assert.Equal(t, "medium", dlq.Severity)
	assert.Contains(t, dlq.Message, "depth 73")

	surge := byType[AlertEnrichmentSurge]
	assert.Equal(t, "medium", surge.Severity)
	assert.Contains(t, surge.Message, "1200 enrichment calls")
}

func TestAlerter_SendAlerts_DeliversEachAlert(t *testing.T) {
	var mu sync.Mutex
	var got []Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var al Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&al))
		mu.Lock()
		got = append(got, al)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "failure rate past threshold"},
		{Type: AlertDLQBacklog, Severity: "medium", Message: "dead letters piling up"},
	})

	assert.Equal(t, 2, sent)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, AlertRunFailureRate, got[0].Type)
	assert.Equal(t, AlertDLQBacklog, got[1].Type)
}

func TestAlerter_SendAlerts_PartialDelivery(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "failure rate past threshold"},
		{Type: AlertDLQBacklog, Severity: "medium", Message: "dead letters piling up"},
	})

	assert.Equal(t, 1, sent, "a failed webhook call only drops that alert")
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_NothingToSend(t *testing.T) {
	// No webhook configured.
	a := NewAlerter(config.MonitoringConfig{})
	assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate}}))

	// Webhook configured but no alerts tripped.
	a = NewAlerter(config.MonitoringConfig{WebhookURL: "http://alerts.internal/hook"})
	assert.Zero(t, a.SendAlerts(context.Background(), nil))
}
