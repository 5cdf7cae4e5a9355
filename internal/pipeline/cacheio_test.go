package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/stability"
)

func payloadProduct(name, url, id string, at time.Time) *model.Product {
	p := &model.Product{
		Name:          name,
		SourceURL:     url,
		NormalizedURL: url,
		RoastLevel:    model.RoastLight,
		Prices:        []model.PriceEntry{{SizeGrams: 250, Price: 16.00}},
		IsAvailable:   true,
		ID:            id,
		ScrapedAt:     at,
	}
	p.Stamp("name", model.SourceStructured)
	p.Stamp("roast_level", model.SourceStructured)
	p.Stamp("prices", model.SourceStructured)
	return p
}

func TestEncodePayload_StableAcrossRunNoise(t *testing.T) {
	site := model.Site{RoasterID: "roaster-drift", Name: "Drift Coffee", URL: "https://drift.example"}
	detection := model.Detection{Platform: model.PlatformShopify, Confidence: 0.9}

	ethiopiaURL := "https://drift.example/products/ethiopia"
	kenyaURL := "https://drift.example/products/kenya"

	// Same content, different store IDs, scrape times, and ordering.
	runA := &model.ScrapeResult{
		Detection: detection,
		Path:      model.PathStructured,
		Accepted: []*model.Product{
			payloadProduct("Ethiopia Yirgacheffe", ethiopiaURL, "row-1", time.Now()),
			payloadProduct("Kenya Peaberry", kenyaURL, "row-2", time.Now()),
		},
	}
	runB := &model.ScrapeResult{
		Detection: detection,
		Path:      model.PathStructured,
		Accepted: []*model.Product{
			payloadProduct("Kenya Peaberry", kenyaURL, "row-9", time.Now().Add(time.Hour)),
			payloadProduct("Ethiopia Yirgacheffe", ethiopiaURL, "", time.Now().Add(time.Hour)),
		},
	}

	dataA, err := encodePayload(site, runA)
	require.NoError(t, err)
	dataB, err := encodePayload(site, runB)
	require.NoError(t, err)

	assert.Equal(t, dataA, dataB, "run noise never changes the canonical payload")
	assert.Equal(t, model.Fingerprint(dataA), model.Fingerprint(dataB))

	// The canonicalizing clone leaves the originals alone.
	assert.Equal(t, "row-1", runA.Accepted[0].ID)
	assert.False(t, runA.Accepted[0].ScrapedAt.IsZero())
}

func TestResultFromCache_RoundTrip(t *testing.T) {
	site := model.Site{RoasterID: "roaster-drift", Name: "Drift Coffee", URL: "https://drift.example"}
	run := &model.ScrapeResult{
		Detection: model.Detection{Platform: model.PlatformShopify, Confidence: 0.9},
		Path:      model.PathStructured,
		Accepted: []*model.Product{
			payloadProduct("Ethiopia Yirgacheffe", "https://drift.example/products/ethiopia", "row-1", time.Now()),
		},
	}
	data, err := encodePayload(site, run)
	require.NoError(t, err)

	result, ok := resultFromCache(site, &model.CacheEntry{Payload: data})
	require.True(t, ok)
	assert.True(t, result.FromCache)
	assert.Equal(t, model.PathCache, result.Path)
	assert.Equal(t, model.PlatformShopify, result.Detection.Platform)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "Ethiopia Yirgacheffe", result.Accepted[0].Name)
	assert.Equal(t, 1, result.Stats.Accepted)
}

func TestResultFromCache_UnreadablePayload(t *testing.T) {
	site := model.Site{URL: "https://drift.example"}
	_, ok := resultFromCache(site, &model.CacheEntry{Payload: []byte("not json")})
	assert.False(t, ok)
}

func TestRestoreFreshFields_RestoresOnlyFreshStrongerFields(t *testing.T) {
	url := "https://drift.example/products/ethiopia"

	cached := &model.Product{Name: "Ethiopia Yirgacheffe", NormalizedURL: url,
		BeanType: model.BeanArabica, Description: "old words"}
	cached.Stamp("bean_type", model.SourceEnrichment)
	cached.Stamp("description", model.SourceDiscovery)

	current := &model.Product{Name: "Ethiopia Yirgacheffe", NormalizedURL: url,
		Description: "new words", Prices: []model.PriceEntry{{SizeGrams: 250, Price: 16.00}}}
	current.Stamp("name", model.SourceStructured)
	current.Stamp("description", model.SourceStructured)
	current.Stamp("prices", model.SourceStructured)

	state := &cacheState{
		fresh: map[model.StabilityCategory]bool{
			model.HighlyStable:     true,
			model.ModeratelyStable: true,
		},
		byURL:     map[string]*model.Product{url: cached},
		stability: stability.DefaultConfig(),
	}
	state.restoreFreshFields(current)

	assert.Equal(t, model.BeanArabica, current.BeanType, "the fresh stable field comes back")
	assert.Equal(t, model.FieldProvenance{Source: model.SourceEnrichment, Confidence: model.ConfidenceEnrichment},
		current.Provenance["bean_type"])
	assert.Equal(t, "new words", current.Description, "weaker cached confidence never overwrites")
	assert.False(t, current.Partial)
}

func TestRestoreFreshFields_SkipsStaleCategory(t *testing.T) {
	url := "https://drift.example/products/ethiopia"

	cached := &model.Product{NormalizedURL: url, BeanType: model.BeanArabica}
	cached.Stamp("bean_type", model.SourceEnrichment)

	current := &model.Product{Name: "Ethiopia Yirgacheffe", NormalizedURL: url}
	current.Stamp("name", model.SourceStructured)

	state := &cacheState{
		// Only the moderately stable window is still considered verified.
		fresh:     map[model.StabilityCategory]bool{model.ModeratelyStable: true},
		byURL:     map[string]*model.Product{url: cached},
		stability: stability.DefaultConfig(),
	}
	state.restoreFreshFields(current)

	assert.Empty(t, current.BeanType, "stale categories must be re-earned, not restored")
}

func TestRestoreFreshFields_ToleratesMissingState(t *testing.T) {
	prod := &model.Product{Name: "Ethiopia Yirgacheffe"}

	var nilState *cacheState
	nilState.restoreFreshFields(prod)

	empty := &cacheState{}
	empty.restoreFreshFields(prod)

	miss := &cacheState{
		fresh:     map[model.StabilityCategory]bool{model.HighlyStable: true},
		byURL:     map[string]*model.Product{"https://other.example": {}},
		stability: stability.DefaultConfig(),
	}
	miss.restoreFreshFields(prod)

	assert.Equal(t, "Ethiopia Yirgacheffe", prod.Name)
}
