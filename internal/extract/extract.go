// Package extract walks a platform's native product feed and maps every
// item to a canonical product record. One extractor per supported
// platform, selected through a fixed registry keyed by the detected
// platform; sites on anything else go down the discovery path instead.
package extract

import (
	"context"

	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
)

// DefaultMaxFeedPages caps the pagination walk when no limit is configured.
const DefaultMaxFeedPages = 20

// Extraction is the outcome of one feed walk.
type Extraction struct {
	// Products holds every feed item that mapped to a record, partial
	// ones included.
	Products []*model.Product

	// Partial is set when any record is missing a required field or the
	// walk stopped early on an error. The caller falls back to discovery
	// for the gaps.
	Partial bool

	// Truncated is set when the walk stopped early on an error, meaning
	// the feed's tail was never seen. Implies Partial. Callers must not
	// treat the product set as the site's full catalog.
	Truncated bool

	// FeedPages counts the feed pages that returned items.
	FeedPages int
}

// Extractor turns one platform's product feed into product records.
type Extractor interface {
	// Platform reports the platform this extractor understands.
	Platform() model.Platform

	// Extract fetches the site's feed page by page until an empty page or
	// the page cap. An unreachable feed is an error; a failure mid-walk
	// returns the pages already parsed with Partial set.
	Extract(ctx context.Context, site model.Site) (*Extraction, error)
}

// Registry holds the platform extractors.
type Registry struct {
	byPlatform map[model.Platform]Extractor
}

// NewRegistry wires the stock extractors over the shared fetcher.
// maxFeedPages bounds the feed walk per site; zero or negative selects
// the default cap.
func NewRegistry(fetcher *fetch.Client, maxFeedPages int) *Registry {
	if maxFeedPages <= 0 {
		maxFeedPages = DefaultMaxFeedPages
	}
	r := &Registry{byPlatform: make(map[model.Platform]Extractor)}
	r.register(&shopifyExtractor{fetcher: fetcher, maxPages: maxFeedPages})
	r.register(&wooExtractor{fetcher: fetcher, maxPages: maxFeedPages})
	return r
}

func (r *Registry) register(e Extractor) {
	r.byPlatform[e.Platform()] = e
}

// For returns the extractor for a platform, if one exists.
func (r *Registry) For(platform model.Platform) (Extractor, bool) {
	e, ok := r.byPlatform[platform]
	return e, ok
}

// Platforms lists the platforms with a registered extractor.
func (r *Registry) Platforms() []model.Platform {
	platforms := make([]model.Platform, 0, len(r.byPlatform))
	for p := range r.byPlatform {
		platforms = append(platforms, p)
	}
	return platforms
}
