// Package monitoring watches the run ledger and the dead letter queue while
// serve mode is up, and pushes webhook alerts when scraping degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scraper health.
type MetricsSnapshot struct {
	// Run ledger metrics within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunsQueued   int     `json:"runs_queued"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// ByPath counts finished runs per extraction tier
	// (structured, discovery, cache).
	ByPath map[string]int `json:"by_path"`

	// Work volume within the window.
	ProductsAccepted    int `json:"products_accepted"`
	CandidatesRejected  int `json:"candidates_rejected"`
	RunErrors           int `json:"run_errors"`
	EnrichmentCalls     int `json:"enrichment_calls"`
	PagesFetched        int `json:"pages_fetched"`

	// DLQ depth, not windowed: parked candidates accumulate until replayed.
	DLQDepth int `json:"dlq_depth"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	summary, err := c.store.SummarizeRuns(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: summarize runs")
	}

	snap.RunsTotal = summary.Total
	snap.RunsComplete = summary.ByStatus[string(model.RunStatusComplete)]
	snap.RunsFailed = summary.ByStatus[string(model.RunStatusFailed)]
	snap.RunsRunning = summary.ByStatus[string(model.RunStatusRunning)]
	snap.RunsQueued = summary.ByStatus[string(model.RunStatusQueued)]
	snap.ByPath = summary.ByPath
	snap.ProductsAccepted = summary.Accepted
	snap.CandidatesRejected = summary.Rejected
	snap.RunErrors = summary.Errors
	snap.EnrichmentCalls = summary.EnrichmentCalls
	snap.PagesFetched = summary.PagesFetched

	finished := snap.RunsComplete + snap.RunsFailed
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	dlqCount, err := c.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count dlq")
	}
	snap.DLQDepth = dlqCount

	return snap, nil
}
