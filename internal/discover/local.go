package discover

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// LocalDiscoverer crawls a storefront with the polite fetcher, visiting
// the best-scored frontier link first. It is the free fallback when the
// hosted crawl is unavailable or comes back empty.
type LocalDiscoverer struct {
	fetcher  *fetch.Client
	matcher  *PathMatcher
	maxPages int
	maxDepth int
}

// NewLocalDiscoverer creates a LocalDiscoverer. Zero bounds get defaults.
func NewLocalDiscoverer(fetcher *fetch.Client, matcher *PathMatcher, maxPages, maxDepth int) *LocalDiscoverer {
	if maxPages <= 0 {
		maxPages = DefaultCrawlPages
	}
	if maxDepth <= 0 {
		maxDepth = DefaultCrawlDepth
	}
	return &LocalDiscoverer{fetcher: fetcher, matcher: matcher, maxPages: maxPages, maxDepth: maxDepth}
}

// Name implements Discoverer.
func (d *LocalDiscoverer) Name() string { return "local" }

// frontierLink is one queued crawl target. priority orders the frontier:
// include-pattern matches and product-ish URL keywords go first.
type frontierLink struct {
	url      string
	depth    int
	priority int
}

// Discover crawls same-host links from the site's start page, scanning
// every fetched page for product indicators. Fetch failures skip the
// page and never abort the crawl.
func (d *LocalDiscoverer) Discover(ctx context.Context, site model.Site, max int) (*model.DiscoveryResult, error) {
	start := normalize.URL(site.URL)
	if start == "" {
		return nil, eris.Errorf("discover: site %s has no url", site.RoasterID)
	}

	seen := map[string]bool{start: true}
	frontier := []frontierLink{{url: start}}
	result := &model.DiscoveryResult{Source: "local"}

	for len(frontier) > 0 && result.Scanned < d.maxPages && len(result.Candidates) < max {
		if ctx.Err() != nil {
			break
		}
		link := popBest(&frontier)

		page, err := d.fetcher.Get(ctx, link.url)
		if err != nil {
			zap.L().Debug("discover: page fetch failed",
				zap.String("url", link.url),
				zap.Error(err),
			)
			continue
		}
		result.Scanned++
		if page.Blocked {
			zap.L().Debug("discover: page blocked",
				zap.String("url", link.url),
				zap.String("block", string(page.Block)),
			)
			continue
		}

		html := string(page.Body)
		if score := Score(page.URL, html); score >= CandidateThreshold {
			result.Candidates = append(result.Candidates, model.Candidate{
				URL:         page.URL,
				Title:       PageTitle(html),
				Description: MetaDescription(html),
				HTML:        html,
				Text:        normalize.PageText(html),
				StatusCode:  page.Status,
				Score:       score,
			})
		}

		if link.depth >= d.maxDepth {
			continue
		}
		for _, href := range pageLinks(html, page.URL) {
			if !normalize.SameHost(href, start) || d.matcher.Excluded(href) || skipLink(href) {
				continue
			}
			key := normalize.URL(href)
			if seen[key] {
				continue
			}
			seen[key] = true
			frontier = append(frontier, frontierLink{
				url:      href,
				depth:    link.depth + 1,
				priority: d.linkPriority(href),
			})
		}
	}

	if len(result.Candidates) == 0 && ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "discover: local crawl canceled")
	}

	sortCandidates(result.Candidates)
	result.Candidates = capCandidates(result.Candidates, max)
	return result, nil
}

// popBest removes and returns the highest-priority frontier link.
func popBest(frontier *[]frontierLink) frontierLink {
	links := *frontier
	best := 0
	for i := 1; i < len(links); i++ {
		if links[i].priority > links[best].priority {
			best = i
		}
	}
	link := links[best]
	links[best] = links[len(links)-1]
	*frontier = links[:len(links)-1]
	return link
}

// urlKeywords bias the crawl order toward product pages. Every match
// adds one priority point.
var urlKeywords = []string{
	"coffee", "bean", "roast", "arabica", "robusta", "espresso",
	"product", "single-origin", "blend", "estate", "origin", "buy",
	"shop", "brew", "specialty",
}

func (d *LocalDiscoverer) linkPriority(href string) int {
	lower := strings.ToLower(href)
	priority := 0
	for _, kw := range urlKeywords {
		if strings.Contains(lower, kw) {
			priority++
		}
	}
	// An include-pattern match outranks any keyword combination.
	if d.matcher.Included(href) {
		priority += len(urlKeywords)
	}
	return priority
}

var linkRe = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"'#]+)["']`)

// pageLinks resolves every anchor on the page against its base URL.
func pageLinks(html, base string) []string {
	matches := linkRe.FindAllStringSubmatch(html, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		if href := normalize.AbsoluteURL(strings.TrimSpace(m[1]), base); href != "" {
			links = append(links, href)
		}
	}
	return links
}

// skipExtensions are asset suffixes never worth fetching as pages.
var skipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".css", ".js", ".json", ".xml", ".pdf", ".zip", ".woff", ".woff2", ".mp4",
}

// skipLink filters non-web schemes and static assets.
func skipLink(href string) bool {
	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
