package discover

import (
	"net/url"
	"path"
	"strings"
)

// Default crawl scope for storefronts. Include patterns cover the paths
// the major platforms put product pages under; exclude patterns cover
// checkout flows and content sections that never hold products.
var (
	defaultIncludePaths = []string{"/products/*", "/product/*", "/coffee/*", "/collections/*", "/shop/*"}
	defaultExcludePaths = []string{"/cart*", "/checkout*", "/account*", "/blog/*", "/pages/*", "/policies/*"}
)

// paginationParams are query keys that mark listing pagination and sort
// permutations of pages already covered by the crawl.
var paginationParams = []string{"page", "p", "sort"}

// PathMatcher scopes a crawl by URL path. Patterns are globs; a trailing
// "*" also matches across segments, so "/blog/*" covers "/blog/2024/post"
// and "/cart*" covers "/cart" itself.
type PathMatcher struct {
	include []string
	exclude []string
}

// NewPathMatcher creates a matcher from include and exclude pattern
// lists. Empty lists fall back to the storefront defaults.
func NewPathMatcher(include, exclude []string) *PathMatcher {
	if len(include) == 0 {
		include = defaultIncludePaths
	}
	if len(exclude) == 0 {
		exclude = defaultExcludePaths
	}
	return &PathMatcher{include: include, exclude: exclude}
}

// IncludePatterns returns the include globs, for crawlers that take the
// scope as request parameters.
func (m *PathMatcher) IncludePatterns() []string { return m.include }

// ExcludePatterns returns the exclude globs.
func (m *PathMatcher) ExcludePatterns() []string { return m.exclude }

// Excluded reports whether a URL is out of crawl scope: an exclude
// pattern match, a pagination query, or an unparseable URL.
func (m *PathMatcher) Excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	if hasPaginationQuery(u.Query()) {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.exclude {
		if matchPath(strings.ToLower(pattern), p) {
			return true
		}
	}
	return false
}

// Included reports whether a URL path matches an include pattern. The
// local crawler reads this as a priority boost rather than a hard gate,
// so sites with unconventional layouts still get crawled.
func (m *PathMatcher) Included(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range m.include {
		if matchPath(strings.ToLower(pattern), p) {
			return true
		}
	}
	return false
}

func hasPaginationQuery(q url.Values) bool {
	for _, key := range paginationParams {
		if q.Has(key) {
			return true
		}
	}
	return false
}

// matchPath tries an exact glob match first, then lets a trailing "*"
// match any suffix, including further path segments.
func matchPath(pattern, p string) bool {
	if ok, err := path.Match(pattern, p); err == nil && ok {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(p, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
