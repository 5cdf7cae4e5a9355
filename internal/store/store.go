// Package store persists cache entries, products, scrape runs, the skip
// ledger, and the dead letter queue. SQLite backs the local working set;
// Postgres is the publish target for the product directory.
package store

import (
	"context"
	"time"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/resilience"
)

// Store is the local persistence interface used by the pipeline, the server,
// and the CLI commands.
type Store interface {
	// Cache entries, keyed by model.CacheKey(url, kind). Get returns
	// (nil, nil) on miss; staleness is the caller's judgment.
	GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry *model.CacheEntry) error
	// TouchCacheVerification refreshes verification stamps for the given
	// categories without rewriting the payload. Used when a refetch produced
	// an unchanged fingerprint.
	TouchCacheVerification(ctx context.Context, key string, categories []model.StabilityCategory, at time.Time) error

	// Products, unique by (roaster_id, normalized_url). Upserts never delete;
	// MarkUnavailable flips availability for records absent from the latest
	// scrape.
	UpsertProducts(ctx context.Context, products []*model.Product) (int, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*model.Product, error)
	MarkUnavailable(ctx context.Context, roasterID string, seenURLs []string) (int, error)

	// Scrape run ledger.
	CreateRun(ctx context.Context, site model.Site) (*model.ScrapeRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.ScrapeResult) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)
	SummarizeRuns(ctx context.Context, since time.Time) (*RunSummary, error)

	// Skip ledger: rejected candidates with their reasons.
	RecordRejections(ctx context.Context, runID string, roasterID string, rejected []model.RejectedCandidate) error
	ListRejections(ctx context.Context, filter RejectionFilter) ([]Rejection, error)

	// Dead letter queue for failed candidate URLs.
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// RunFilter narrows ListRuns. Zero values mean "any".
type RunFilter struct {
	Status    model.RunStatus
	RoasterID string
	SiteURL   string
	Limit     int
	Offset    int
}

// ProductFilter narrows ListProducts.
type ProductFilter struct {
	RoasterID     string
	AvailableOnly bool
	Limit         int
	Offset        int
}

// Rejection is one persisted skip-ledger record.
type Rejection struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	RoasterID string    `json:"roaster_id"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	Stage     string    `json:"stage"`
	Reasons   []string  `json:"reasons"`
	CreatedAt time.Time `json:"created_at"`
}

// RejectionFilter narrows ListRejections.
type RejectionFilter struct {
	RoasterID string
	Stage     string
	Limit     int
	Offset    int
}

// RunSummary aggregates the run ledger over a lookback window.
type RunSummary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByPath          map[string]int `json:"by_path"`
	Accepted        int            `json:"accepted"`
	Rejected        int            `json:"rejected"`
	Errors          int            `json:"errors"`
	EnrichmentCalls int            `json:"enrichment_calls"`
	PagesFetched    int            `json:"pages_fetched"`
}
