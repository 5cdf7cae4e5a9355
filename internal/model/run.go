package model

import "time"

// RunStatus represents the current state of a scrape run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapePath records which extraction tier produced the run's records.
type ScrapePath string

const (
	PathStructured ScrapePath = "structured"
	PathDiscovery  ScrapePath = "discovery"
	PathCache      ScrapePath = "cache"
)

// Site is a scrape target: one roaster storefront.
type Site struct {
	RoasterID string `json:"roaster_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	// NotionPageID links the site back to its queue entry in batch mode.
	NotionPageID string `json:"notion_page_id,omitempty"`
}

// RejectedCandidate is a candidate that failed validation, kept so callers
// can distinguish "nothing found" from "found but rejected".
type RejectedCandidate struct {
	URL     string   `json:"url"`
	Name    string   `json:"name,omitempty"`
	Stage   string   `json:"stage"` // phase1 | phase2
	Reasons []string `json:"reasons"`
}

// RunStats summarizes the work a run performed.
type RunStats struct {
	PagesFetched    int   `json:"pages_fetched"`
	FeedPages       int   `json:"feed_pages"`
	Discovered      int   `json:"discovered"`
	EnrichmentCalls int   `json:"enrichment_calls"`
	Accepted        int   `json:"accepted"`
	Rejected        int   `json:"rejected"`
	DurationMS      int64 `json:"duration_ms"`
}

// ScrapeResult is the orchestrator's output for one site run. Accepted,
// rejected, and errors are always separated.
type ScrapeResult struct {
	RunID      string              `json:"run_id"`
	Site       Site                `json:"site"`
	Detection  Detection           `json:"detection"`
	Path       ScrapePath          `json:"path"`
	Accepted   []*Product          `json:"accepted"`
	Rejected   []RejectedCandidate `json:"rejected"`
	Errors     []string            `json:"errors,omitempty"`
	Incomplete bool                `json:"incomplete,omitempty"`
	FromCache  bool                `json:"from_cache,omitempty"`
	Stats      RunStats            `json:"stats"`
}

// ScrapeRun is the persisted ledger entry for one orchestrator invocation.
type ScrapeRun struct {
	ID         string        `json:"id"`
	Site       Site          `json:"site"`
	Status     RunStatus     `json:"status"`
	Path       ScrapePath    `json:"path,omitempty"`
	Accepted   int           `json:"accepted"`
	Rejected   int           `json:"rejected"`
	ErrorCount int           `json:"error_count"`
	Error      string        `json:"error,omitempty"`
	Result     *ScrapeResult `json:"result,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
