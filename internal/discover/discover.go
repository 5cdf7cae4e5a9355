// Package discover finds candidate product pages on storefronts without
// a usable structured feed. A chain of discoverers runs in priority
// order: the hosted Firecrawl crawl first, then a local best-first crawl
// over same-host links. Candidates come back ordered by product-
// likelihood score with their raw HTML attached, so phase-1 validation
// and the page parse never refetch.
package discover

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// DefaultMaxCandidates bounds a discovery pass when the caller does not.
const DefaultMaxCandidates = 50

// Discoverer proposes candidate product pages for one site. Results are
// finite and ordered by score, highest first; a fresh call re-scans.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context, site model.Site, max int) (*model.DiscoveryResult, error)
}

// Chain tries discoverers in priority order and returns the first
// non-empty result. A discoverer that errors or yields nothing hands
// over to the next.
type Chain struct {
	discoverers []Discoverer
}

// NewChain creates a Chain. Discoverers run in the order given.
func NewChain(discoverers ...Discoverer) *Chain {
	return &Chain{discoverers: discoverers}
}

// Discover runs the chain for one site, capping candidates at max.
func (c *Chain) Discover(ctx context.Context, site model.Site, max int) (*model.DiscoveryResult, error) {
	if max <= 0 {
		max = DefaultMaxCandidates
	}

	var lastErr error
	for _, d := range c.discoverers {
		result, err := d.Discover(ctx, site, max)
		if err != nil {
			zap.L().Debug("discover: discoverer failed, trying next",
				zap.String("discoverer", d.Name()),
				zap.String("site", site.URL),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if result != nil && len(result.Candidates) > 0 {
			return result, nil
		}
		zap.L().Debug("discover: discoverer found nothing, trying next",
			zap.String("discoverer", d.Name()),
			zap.String("site", site.URL),
		)
	}

	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "discover: all discoverers failed")
	}
	// Every discoverer came back clean and empty: nothing on the site
	// scans as a product page.
	return &model.DiscoveryResult{}, nil
}

// sortCandidates orders candidates by score, highest first, keeping the
// crawl order among ties.
func sortCandidates(candidates []model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

func capCandidates(candidates []model.Candidate, max int) []model.Candidate {
	if max > 0 && len(candidates) > max {
		return candidates[:max]
	}
	return candidates
}
