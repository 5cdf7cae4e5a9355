package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
)

func mergeProduct(name, url string) *model.Product {
	return &model.Product{Name: name, SourceURL: url, NormalizedURL: url}
}

func TestDedupeByURL_PrefersHigherConfidenceRecord(t *testing.T) {
	url := "https://drift.example/products/ethiopia"

	feed := mergeProduct("Ethiopia Yirgacheffe", url)
	feed.Stamp("name", model.SourceStructured)
	feed.Stamp("prices", model.SourceStructured)

	page := mergeProduct("Ethiopia", url)
	page.Stamp("name", model.SourceDiscovery)

	other := mergeProduct("Kenya Peaberry", "https://drift.example/products/kenya")
	other.Stamp("name", model.SourceDiscovery)

	out := dedupeByURL([]*model.Product{feed, page, other})
	require.Len(t, out, 2)
	assert.Same(t, feed, out[0], "the stronger record wins the slot")
	assert.Same(t, other, out[1])
}

func TestDedupeByURL_ReplacesWeakerRecordInPlace(t *testing.T) {
	url := "https://drift.example/products/ethiopia"

	page := mergeProduct("Ethiopia", url)
	page.Stamp("name", model.SourceDiscovery)

	feed := mergeProduct("Ethiopia Yirgacheffe", url)
	feed.Stamp("name", model.SourceStructured)
	feed.Stamp("prices", model.SourceStructured)

	other := mergeProduct("Kenya Peaberry", "https://drift.example/products/kenya")
	other.Stamp("name", model.SourceDiscovery)

	out := dedupeByURL([]*model.Product{page, feed, other})
	require.Len(t, out, 2)
	assert.Same(t, feed, out[0], "the winner keeps the first-seen position")
	assert.Same(t, other, out[1])
}

func TestDedupeByURL_FoldsStrongerLoserFieldsIntoWinner(t *testing.T) {
	url := "https://drift.example/products/ethiopia"

	feed := mergeProduct("Ethiopia Yirgacheffe", url)
	feed.Description = "feed words"
	feed.Prices = []model.PriceEntry{{SizeGrams: 250, Price: 16.00}}
	feed.Stamp("name", model.SourceStructured)
	feed.Stamp("description", model.SourceStructured)
	feed.Stamp("prices", model.SourceStructured)

	page := mergeProduct("Ethiopia", url)
	page.Description = "page words"
	page.RegionName = "Gedeb, Ethiopia"
	page.Stamp("name", model.SourceDiscovery)
	page.Stamp("description", model.SourceDiscovery)
	page.Stamp("region_name", model.SourceDiscovery)

	out := dedupeByURL([]*model.Product{feed, page})
	require.Len(t, out, 1)
	winner := out[0]
	require.Same(t, feed, winner)

	assert.Equal(t, "Gedeb, Ethiopia", winner.RegionName, "fields the winner lacks fold in")
	assert.Equal(t, model.FieldProvenance{Source: model.SourceDiscovery, Confidence: model.ConfidenceDiscovery},
		winner.Provenance["region_name"], "folded fields keep their source's stamp")
	assert.Equal(t, "feed words", winner.Description, "equal-or-lower confidence never overwrites")
	assert.Equal(t, model.FieldProvenance{Source: model.SourceStructured, Confidence: model.ConfidenceStructured},
		winner.Provenance["description"])
}

func TestDedupeByURL_DegenerateInputs(t *testing.T) {
	assert.Empty(t, dedupeByURL(nil))

	solo := mergeProduct("Ethiopia Yirgacheffe", "https://drift.example/products/ethiopia")
	out := dedupeByURL([]*model.Product{solo})
	require.Len(t, out, 1)
	assert.Same(t, solo, out[0])
}
