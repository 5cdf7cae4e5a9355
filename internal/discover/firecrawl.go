package discover

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
	"github.com/beanatlas/coffee-cli/pkg/firecrawl"
)

// Crawl bounds applied when the caller passes none.
const (
	DefaultCrawlPages = 150
	DefaultCrawlDepth = 3
)

// FirecrawlDiscoverer crawls a storefront through the hosted Firecrawl
// API. The include/exclude scope travels with the crawl request, so the
// backend only renders pages worth scanning.
type FirecrawlDiscoverer struct {
	client   firecrawl.Client
	matcher  *PathMatcher
	maxPages int
	maxDepth int
}

// NewFirecrawlDiscoverer creates a FirecrawlDiscoverer. Zero bounds get
// defaults.
func NewFirecrawlDiscoverer(client firecrawl.Client, matcher *PathMatcher, maxPages, maxDepth int) *FirecrawlDiscoverer {
	if maxPages <= 0 {
		maxPages = DefaultCrawlPages
	}
	if maxDepth <= 0 {
		maxDepth = DefaultCrawlDepth
	}
	return &FirecrawlDiscoverer{client: client, matcher: matcher, maxPages: maxPages, maxDepth: maxDepth}
}

// Name implements Discoverer.
func (d *FirecrawlDiscoverer) Name() string { return "firecrawl" }

// Discover starts a crawl, polls it to completion, and scans every
// returned page for product indicators.
func (d *FirecrawlDiscoverer) Discover(ctx context.Context, site model.Site, max int) (*model.DiscoveryResult, error) {
	resp, err := d.client.Crawl(ctx, firecrawl.CrawlRequest{
		URL:          site.URL,
		MaxDepth:     d.maxDepth,
		Limit:        d.maxPages,
		IncludePaths: d.matcher.IncludePatterns(),
		ExcludePaths: d.matcher.ExcludePatterns(),
		ScrapeOptions: &firecrawl.ScrapeOptions{
			// HTML for the indicator scan, markdown for enrichment text.
			Formats: []string{"html", "markdown"},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "discover: start crawl for %s", site.URL)
	}
	if !resp.Success || resp.ID == "" {
		return nil, eris.Errorf("discover: crawl not accepted for %s", site.URL)
	}

	status, err := firecrawl.PollCrawl(ctx, d.client, resp.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "discover: crawl %s for %s", resp.ID, site.URL)
	}

	result := &model.DiscoveryResult{Source: "firecrawl", Scanned: len(status.Data)}
	for _, page := range status.Data {
		// Path filters ran on the backend; the query check still has to
		// run here because pagination lives in query strings.
		if d.matcher.Excluded(page.URL) {
			continue
		}
		score := Score(page.URL, page.HTML)
		if score < CandidateThreshold {
			continue
		}
		result.Candidates = append(result.Candidates, candidateFromPage(page, score))
	}

	sortCandidates(result.Candidates)
	result.Candidates = capCandidates(result.Candidates, max)
	return result, nil
}

// candidateFromPage fills candidate metadata from the crawl payload,
// falling back to the raw HTML for anything the backend left blank.
func candidateFromPage(page firecrawl.PageData, score int) model.Candidate {
	title := TrimTitle(page.Title)
	if title == "" {
		title = PageTitle(page.HTML)
	}
	description := page.Description
	if description == "" {
		description = MetaDescription(page.HTML)
	}
	text := page.Markdown
	if text == "" {
		text = normalize.PageText(page.HTML)
	}
	return model.Candidate{
		URL:         page.URL,
		Title:       title,
		Description: description,
		HTML:        page.HTML,
		Text:        text,
		StatusCode:  page.StatusCode,
		Score:       score,
	}
}
