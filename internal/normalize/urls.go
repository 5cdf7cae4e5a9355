package normalize

import (
	"net/url"
	"strings"
)

// URL canonicalizes a product or site URL for caching, deduplication, and
// comparison: scheme-less input gets https, the host is lowercased and
// loses its www prefix, and the query string, fragment, and trailing
// slash are dropped. Unparseable input comes back trimmed but otherwise
// untouched.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	normalized := u.Scheme + "://" + host
	if path := strings.TrimRight(u.Path, "/"); path != "" {
		normalized += path
	}
	return normalized
}

// Domain returns the bare registrable host of a URL: lowercased, www
// stripped, port kept.
func Domain(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	return strings.TrimPrefix(host, "www.")
}

// AbsoluteURL resolves href against base. Already-absolute links pass
// through unchanged; protocol-relative links inherit the base scheme.
func AbsoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return b.Scheme + ":" + href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// SameHost reports whether two URLs share a host, ignoring case and a
// www prefix. Used to keep crawls on the roaster's own site.
func SameHost(a, b string) bool {
	da, db := Domain(a), Domain(b)
	return da != "" && da == db
}
