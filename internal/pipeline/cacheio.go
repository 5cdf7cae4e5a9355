package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/stability"
)

// productSetPayload is the cached shape of one site's accepted product
// set. Products are sorted by normalized URL before marshalling so the
// fingerprint is stable across runs that found the same content.
type productSetPayload struct {
	Site      model.Site       `json:"site"`
	Detection model.Detection  `json:"detection"`
	Path      model.ScrapePath `json:"path"`
	Products  []*model.Product `json:"products"`
}

// cacheState carries one site's cache entry through a scrape: which
// categories are still fresh, and the cached records keyed by URL so
// fresh fields can be restored onto re-scraped products.
type cacheState struct {
	key    string
	entry  *model.CacheEntry
	stale  []model.StabilityCategory
	fresh  map[model.StabilityCategory]bool
	byURL  map[string]*model.Product
	forced bool

	stability *stability.Config
}

// loadCacheState reads the site's productSet entry and judges staleness
// per category. A read failure degrades to a miss.
func (p *Pipeline) loadCacheState(ctx context.Context, siteURL string, forced bool) *cacheState {
	state := &cacheState{
		key:       model.CacheKey(siteURL, model.CacheKindProductSet),
		fresh:     make(map[model.StabilityCategory]bool),
		forced:    forced,
		stability: p.stability,
	}

	entry, err := p.store.GetCacheEntry(ctx, state.key)
	if err != nil {
		zap.L().Warn("pipeline: cache read failed, treating as miss",
			zap.String("site", siteURL),
			zap.Error(err),
		)
	}
	if entry == nil {
		state.stale = model.AllStabilityCategories()
		return state
	}
	state.entry = entry

	state.stale = entry.StaleCategories(time.Now(), p.stability.MaxAges(), model.AllStabilityCategories())
	staleSet := make(map[model.StabilityCategory]bool, len(state.stale))
	for _, cat := range state.stale {
		staleSet[cat] = true
	}
	for _, cat := range model.AllStabilityCategories() {
		if !staleSet[cat] {
			state.fresh[cat] = true
		}
	}

	if payload, err := decodePayload(entry); err != nil {
		zap.L().Warn("pipeline: cache payload unreadable",
			zap.String("site", siteURL),
			zap.Error(err),
		)
	} else {
		state.byURL = make(map[string]*model.Product, len(payload.Products))
		for _, cached := range payload.Products {
			key := cached.NormalizedURL
			if key == "" {
				key = cached.SourceURL
			}
			state.byURL[key] = cached
		}
	}
	return state
}

// fullyFresh reports whether the cached product set can answer the scrape
// outright: an entry exists, no category is past its max age, and the
// caller did not force a refresh.
func (c *cacheState) fullyFresh() bool {
	return c.entry != nil && len(c.stale) == 0 && !c.forced
}

// restoreFreshFields copies cached field values in still-fresh categories
// onto a re-scraped product when the cached value carries strictly higher
// confidence. An unchanged page therefore keeps its enriched fields at
// full confidence and never re-enters the enrichment queue early.
func (c *cacheState) restoreFreshFields(p *model.Product) {
	if c == nil || len(c.byURL) == 0 || len(c.fresh) == 0 {
		return
	}
	key := p.NormalizedURL
	if key == "" {
		key = p.SourceURL
	}
	cached, ok := c.byURL[key]
	if !ok {
		return
	}
	for field := range cached.Provenance {
		if !c.fresh[c.stability.CategoryOf(field)] {
			continue
		}
		if cached.FieldConfidence(field) > p.FieldConfidence(field) {
			copyField(p, cached, field)
		}
	}
	p.Partial = len(p.MissingRequired()) > 0
}

// resultFromCache turns a fresh cache entry back into a scrape result.
func resultFromCache(site model.Site, entry *model.CacheEntry) (*model.ScrapeResult, bool) {
	payload, err := decodePayload(entry)
	if err != nil {
		return nil, false
	}
	return &model.ScrapeResult{
		Site:      site,
		Detection: payload.Detection,
		Path:      model.PathCache,
		Accepted:  payload.Products,
		FromCache: true,
		Stats:     model.RunStats{Accepted: len(payload.Products)},
	}, true
}

// writeCache persists the run's product set. An unchanged fingerprint
// refreshes every verification stamp without rewriting the payload: the
// identical content re-proves all cached values at once. A changed
// payload is written whole, stamping the categories this run re-verified
// and carrying forward the stamps of categories served from cache, so
// each category's re-verification cadence holds.
func (p *Pipeline) writeCache(ctx context.Context, site model.Site, cache *cacheState, result *model.ScrapeResult) error {
	data, err := encodePayload(site, result)
	if err != nil {
		return err
	}
	fingerprint := model.Fingerprint(data)
	now := time.Now().UTC()

	if cache.entry != nil && cache.entry.Fingerprint == fingerprint {
		zap.L().Debug("pipeline: content unchanged, refreshing verification stamps",
			zap.String("site", site.URL),
		)
		return p.store.TouchCacheVerification(ctx, cache.key, model.AllStabilityCategories(), now)
	}

	verified := make(map[model.StabilityCategory]time.Time, 4)
	for _, cat := range model.AllStabilityCategories() {
		if cache.entry != nil && cache.fresh[cat] {
			verified[cat] = cache.entry.LastVerified[cat]
		} else {
			verified[cat] = now
		}
	}

	return p.store.PutCacheEntry(ctx, &model.CacheEntry{
		Key:          cache.key,
		URL:          site.URL,
		Kind:         model.CacheKindProductSet,
		Payload:      data,
		Fingerprint:  fingerprint,
		FetchedAt:    now,
		LastVerified: verified,
	})
}

// encodePayload marshals the canonical product set: sorted by normalized
// URL with per-run noise (store IDs, scrape timestamps) cleared, so two
// runs over unchanged content produce byte-identical payloads.
func encodePayload(site model.Site, result *model.ScrapeResult) ([]byte, error) {
	products := make([]*model.Product, len(result.Accepted))
	for i, p := range result.Accepted {
		clone := *p
		clone.ID = ""
		clone.ScrapedAt = time.Time{}
		products[i] = &clone
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].NormalizedURL < products[j].NormalizedURL
	})

	data, err := json.Marshal(productSetPayload{
		Site:      site,
		Detection: result.Detection,
		Path:      result.Path,
		Products:  products,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal product set")
	}
	return data, nil
}

func decodePayload(entry *model.CacheEntry) (*productSetPayload, error) {
	var payload productSetPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return nil, eris.Wrap(err, "pipeline: unmarshal product set")
	}
	return &payload, nil
}
