package discover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
)

type mockDiscoverer struct {
	name   string
	result *model.DiscoveryResult
	err    error
	calls  int
	gotMax int
}

func (m *mockDiscoverer) Name() string { return m.name }

func (m *mockDiscoverer) Discover(_ context.Context, _ model.Site, max int) (*model.DiscoveryResult, error) {
	m.calls++
	m.gotMax = max
	return m.result, m.err
}

func testSite() model.Site {
	return model.Site{RoasterID: "drift", Name: "Drift Coffee", URL: "https://drift.example"}
}

func TestChain_FirstResultWins(t *testing.T) {
	first := &mockDiscoverer{name: "firecrawl", result: &model.DiscoveryResult{
		Source:  "firecrawl",
		Scanned: 12,
		Candidates: []model.Candidate{
			{URL: "https://drift.example/products/kenya-aa", Score: 5},
		},
	}}
	second := &mockDiscoverer{name: "local"}

	result, err := NewChain(first, second).Discover(context.Background(), testSite(), 10)

	require.NoError(t, err)
	assert.Equal(t, "firecrawl", result.Source)
	assert.Len(t, result.Candidates, 1)
	assert.Equal(t, 0, second.calls, "later discoverers should not run")
}

func TestChain_ErrorFallsThrough(t *testing.T) {
	first := &mockDiscoverer{name: "firecrawl", err: errors.New("api down")}
	second := &mockDiscoverer{name: "local", result: &model.DiscoveryResult{
		Source: "local",
		Candidates: []model.Candidate{
			{URL: "https://drift.example/products/house-blend", Score: 4},
		},
	}}

	result, err := NewChain(first, second).Discover(context.Background(), testSite(), 10)

	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.Equal(t, 1, first.calls)
}

func TestChain_EmptyResultFallsThrough(t *testing.T) {
	first := &mockDiscoverer{name: "firecrawl", result: &model.DiscoveryResult{
		Source:  "firecrawl",
		Scanned: 40,
	}}
	second := &mockDiscoverer{name: "local", result: &model.DiscoveryResult{
		Source: "local",
		Candidates: []model.Candidate{
			{URL: "https://drift.example/products/house-blend", Score: 4},
		},
	}}

	result, err := NewChain(first, second).Discover(context.Background(), testSite(), 10)

	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
}

func TestChain_AllFail(t *testing.T) {
	first := &mockDiscoverer{name: "firecrawl", err: errors.New("api down")}
	second := &mockDiscoverer{name: "local", err: errors.New("connect refused")}

	result, err := NewChain(first, second).Discover(context.Background(), testSite(), 10)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "all discoverers failed")
}

func TestChain_AllEmpty(t *testing.T) {
	first := &mockDiscoverer{name: "firecrawl", result: &model.DiscoveryResult{Source: "firecrawl"}}
	second := &mockDiscoverer{name: "local", result: &model.DiscoveryResult{Source: "local"}}

	result, err := NewChain(first, second).Discover(context.Background(), testSite(), 10)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Candidates)
}

func TestChain_DefaultsMax(t *testing.T) {
	d := &mockDiscoverer{name: "local", result: &model.DiscoveryResult{
		Source:     "local",
		Candidates: []model.Candidate{{URL: "https://drift.example/products/kenya-aa", Score: 3}},
	}}

	_, err := NewChain(d).Discover(context.Background(), testSite(), 0)

	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCandidates, d.gotMax)
}

func TestSortCandidates_HighestFirst(t *testing.T) {
	candidates := []model.Candidate{
		{URL: "a", Score: 3},
		{URL: "b", Score: 7},
		{URL: "c", Score: 5},
		{URL: "d", Score: 7},
	}

	sortCandidates(candidates)

	var urls []string
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, urls, "ties keep crawl order")
}

func TestCapCandidates(t *testing.T) {
	candidates := make([]model.Candidate, 5)

	assert.Len(t, capCandidates(candidates, 3), 3)
	assert.Len(t, capCandidates(candidates, 10), 5)
	assert.Len(t, capCandidates(candidates, 0), 5)
}
