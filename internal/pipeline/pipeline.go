// Package pipeline composes the whole scrape: platform detection, the
// structured-feed walk, discovery fallback, two-phase validation with
// enrichment between the phases, URL deduplication, and the field-stability
// cache. One Scrape call covers one site; batch mode fans sites out over
// the same Pipeline.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/config"
	"github.com/beanatlas/coffee-cli/internal/enrich"
	"github.com/beanatlas/coffee-cli/internal/extract"
	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/internal/platform"
	"github.com/beanatlas/coffee-cli/internal/stability"
	"github.com/beanatlas/coffee-cli/internal/store"
	"github.com/beanatlas/coffee-cli/internal/validate"
)

// Discoverer proposes candidate product pages when no structured feed is
// usable. Satisfied by discover.Chain.
type Discoverer interface {
	Discover(ctx context.Context, site model.Site, max int) (*model.DiscoveryResult, error)
}

// Enricher fills missing product fields from page text. Satisfied by
// enrich.Enricher.
type Enricher interface {
	Missing(p *model.Product) []string
	Enrich(ctx context.Context, candidate model.Candidate, missing []string) (enrich.Fields, error)
	Apply(p *model.Product, fields enrich.Fields)
}

// Extractors resolves the structured-feed extractor for a platform.
// Satisfied by extract.Registry.
type Extractors interface {
	For(platform model.Platform) (extract.Extractor, bool)
}

// Options adjust a single scrape invocation.
type Options struct {
	// ForceRefresh bypasses the cache short-circuit and re-fetches even
	// when every field category is still fresh.
	ForceRefresh bool
}

// Pipeline is the per-site orchestrator.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	fetcher    *fetch.Client
	extractors Extractors
	discoverer Discoverer
	enricher   Enricher
	validator  *validate.Validator
	stability  *stability.Config
	locks      *siteLocks
}

// New creates a Pipeline with all dependencies injected.
func New(
	cfg *config.Config,
	st store.Store,
	fetcher *fetch.Client,
	extractors Extractors,
	discoverer Discoverer,
	enricher Enricher,
	validator *validate.Validator,
	stabilityCfg *stability.Config,
) *Pipeline {
	if stabilityCfg == nil {
		stabilityCfg = stability.DefaultConfig()
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		fetcher:    fetcher,
		extractors: extractors,
		discoverer: discoverer,
		enricher:   enricher,
		validator:  validator,
		stability:  stabilityCfg,
		locks:      newSiteLocks(),
	}
}

// Scrape runs the full pipeline for one site with default options.
func (p *Pipeline) Scrape(ctx context.Context, site model.Site) (*model.ScrapeResult, error) {
	return p.ScrapeWithOptions(ctx, site, Options{})
}

// ScrapeWithOptions runs the full pipeline for one site. Candidate failures
// never abort the site; the result always separates accepted, rejected, and
// errors. A per-site timeout turns into a partial result, not a failure.
// Concurrent calls for the same site serialize on an advisory lock.
func (p *Pipeline) ScrapeWithOptions(ctx context.Context, site model.Site, opts Options) (*model.ScrapeResult, error) {
	siteURL := normalize.URL(site.URL)
	if siteURL == "" {
		return nil, eris.Errorf("pipeline: site %q has no url", site.Name)
	}
	site.URL = siteURL
	if site.RoasterID == "" {
		site.RoasterID = normalize.Domain(siteURL)
	}

	unlock := p.locks.lock(siteURL)
	defer unlock()

	if secs := p.cfg.Pipeline.SiteTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	log := zap.L().With(
		zap.String("roaster", site.RoasterID),
		zap.String("site", siteURL),
	)
	start := time.Now()

	cache := p.loadCacheState(ctx, siteURL, opts.ForceRefresh)
	if cache.fullyFresh() {
		if result, ok := resultFromCache(site, cache.entry); ok {
			result.Stats.DurationMS = time.Since(start).Milliseconds()
			if run, err := p.store.CreateRun(ctx, site); err != nil {
				log.Warn("pipeline: create run", zap.Error(err))
			} else {
				result.RunID = run.ID
				if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
					log.Warn("pipeline: complete run", zap.Error(err))
				}
			}
			log.Info("pipeline: serving cached product set",
				zap.Int("products", len(result.Accepted)),
			)
			return result, nil
		}
		log.Warn("pipeline: cache payload unreadable, refetching")
	}

	run, err := p.store.CreateRun(ctx, site)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("pipeline: update run status", zap.Error(err))
	}

	result := p.runSite(ctx, log, site, cache)
	result.RunID = run.ID
	result.Stats.DurationMS = time.Since(start).Milliseconds()
	result.Stats.Accepted = len(result.Accepted)
	result.Stats.Rejected = len(result.Rejected)

	p.persist(ctx, log, site, cache, result)

	log.Info("pipeline: scrape complete",
		zap.String("path", string(result.Path)),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("incomplete", result.Incomplete),
		zap.Int64("duration_ms", result.Stats.DurationMS),
	)
	return result, nil
}

// runSite walks the extraction tiers: detect, structured feed, then
// discovery when the feed is missing, incomplete, or not trusted.
func (p *Pipeline) runSite(ctx context.Context, log *zap.Logger, site model.Site, cache *cacheState) *model.ScrapeResult {
	result := &model.ScrapeResult{Site: site}

	detection := p.detect(ctx, log, site, result)
	result.Detection = detection

	var items []workItem
	threshold := p.cfg.Detector.APIThreshold
	structuredTrusted := detection.Confidence >= threshold && detection.Platform != model.PlatformGeneric

	useDiscovery := !structuredTrusted
	if structuredTrusted {
		extractor, ok := p.extractors.For(detection.Platform)
		if !ok {
			log.Debug("pipeline: no extractor for platform",
				zap.String("platform", string(detection.Platform)))
			useDiscovery = true
		} else {
			extraction, err := extractor.Extract(ctx, site)
			switch {
			case err != nil:
				log.Warn("pipeline: structured extraction failed", zap.Error(err))
				result.Errors = append(result.Errors, "structured: "+err.Error())
				useDiscovery = true
			default:
				result.Stats.FeedPages = extraction.FeedPages
				result.Stats.PagesFetched += extraction.FeedPages
				items = append(items, structuredItems(extraction.Products)...)
				// Partial records get their gaps filled by enrichment, but a
				// partial extraction still sends discovery after the pages
				// the feed never surfaced.
				if extraction.Partial || len(extraction.Products) == 0 {
					useDiscovery = true
				}
				// A truncated walk never saw the catalog's tail, so this run
				// must not be trusted for availability flips.
				if extraction.Truncated {
					result.Incomplete = true
					result.Errors = append(result.Errors, "structured: feed walk truncated")
				}
			}
		}
	}

	if len(items) > 0 {
		result.Path = model.PathStructured
	}

	if useDiscovery {
		discovered := p.discover(ctx, log, site, result)
		items = append(items, discoveryItems(discovered, coveredURLs(items))...)
	}
	if result.Path == "" {
		result.Path = model.PathDiscovery
	}

	accepted := p.processItems(ctx, log, site, items, cache, result)
	result.Accepted = dedupeByURL(accepted)
	if ctx.Err() != nil && !result.Incomplete {
		// Timed out or canceled mid-run: keep what was collected.
		result.Incomplete = true
		result.Errors = append(result.Errors, "site run canceled: "+ctx.Err().Error())
	}
	return result
}

// detect fetches the landing page and classifies the platform. A failed or
// blocked fetch degrades to generic with zero confidence so the run
// continues down the discovery path.
func (p *Pipeline) detect(ctx context.Context, log *zap.Logger, site model.Site, result *model.ScrapeResult) model.Detection {
	page, err := p.fetcher.Get(ctx, site.URL)
	if err != nil {
		log.Warn("pipeline: landing page fetch failed", zap.Error(err))
		result.Errors = append(result.Errors, "detect: "+err.Error())
		return model.Detection{Platform: model.PlatformGeneric}
	}
	result.Stats.PagesFetched++
	if page.Blocked {
		log.Warn("pipeline: landing page blocked", zap.String("block", string(page.Block)))
		result.Errors = append(result.Errors, "detect: blocked ("+string(page.Block)+")")
		return model.Detection{Platform: model.PlatformGeneric}
	}

	headers := make(map[string]string, len(page.Header))
	for key := range page.Header {
		headers[key] = page.Header.Get(key)
	}
	detection := platform.Detect(model.SiteSignals{
		URL:     page.URL,
		Headers: headers,
		HTML:    string(page.Body),
	})
	log.Info("pipeline: platform detected",
		zap.String("platform", string(detection.Platform)),
		zap.Float64("confidence", detection.Confidence),
	)
	return detection
}

// discover runs the discovery chain. An empty result is legitimate; an
// error is recorded and the run continues with whatever the structured leg
// produced.
func (p *Pipeline) discover(ctx context.Context, log *zap.Logger, site model.Site, result *model.ScrapeResult) []model.Candidate {
	max := p.cfg.Pipeline.MaxCandidates
	discovery, err := p.discoverer.Discover(ctx, site, max)
	if err != nil {
		log.Warn("pipeline: discovery failed", zap.Error(err))
		result.Errors = append(result.Errors, "discover: "+err.Error())
		result.Incomplete = true
		return nil
	}
	result.Stats.Discovered = len(discovery.Candidates)
	result.Stats.PagesFetched += discovery.Scanned
	log.Info("pipeline: discovery finished",
		zap.String("source", discovery.Source),
		zap.Int("scanned", discovery.Scanned),
		zap.Int("candidates", len(discovery.Candidates)),
	)
	return discovery.Candidates
}

// persist writes the run outcome: local product upserts, availability
// flips for rows absent from a complete run, the skip ledger, the product
// set cache entry, and the run ledger.
func (p *Pipeline) persist(ctx context.Context, log *zap.Logger, site model.Site, cache *cacheState, result *model.ScrapeResult) {
	// Persistence must finish even when the site context timed out.
	ctx = context.WithoutCancel(ctx)

	if len(result.Accepted) > 0 {
		if _, err := p.store.UpsertProducts(ctx, result.Accepted); err != nil {
			log.Warn("pipeline: upsert products", zap.Error(err))
			result.Errors = append(result.Errors, "store: "+err.Error())
		}
	}

	// Only a complete run may flip availability: a timed-out or partial
	// scrape has not seen the whole catalog.
	if !result.Incomplete && len(result.Accepted) > 0 {
		seen := make([]string, 0, len(result.Accepted))
		for _, prod := range result.Accepted {
			seen = append(seen, prod.NormalizedURL)
		}
		if n, err := p.store.MarkUnavailable(ctx, site.RoasterID, seen); err != nil {
			log.Warn("pipeline: mark unavailable", zap.Error(err))
		} else if n > 0 {
			log.Info("pipeline: products no longer listed", zap.Int("count", n))
		}
	}

	if len(result.Rejected) > 0 {
		if err := p.store.RecordRejections(ctx, result.RunID, site.RoasterID, result.Rejected); err != nil {
			log.Warn("pipeline: record rejections", zap.Error(err))
		}
	}

	// A run that yielded nothing and hit errors is a failure, and its empty
	// product set must not be cached as the site's answer.
	if len(result.Accepted) == 0 && len(result.Rejected) == 0 && len(result.Errors) > 0 {
		if err := p.store.FailRun(ctx, result.RunID, strings.Join(result.Errors, "; ")); err != nil {
			log.Warn("pipeline: fail run", zap.Error(err))
		}
		return
	}

	if !result.Incomplete {
		if err := p.writeCache(ctx, site, cache, result); err != nil {
			log.Warn("pipeline: write cache", zap.Error(err))
		}
	}

	if err := p.store.CompleteRun(ctx, result.RunID, result); err != nil {
		log.Warn("pipeline: complete run", zap.Error(err))
	}
}
