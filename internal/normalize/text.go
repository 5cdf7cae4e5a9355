// Package normalize holds the shared text, URL, weight, price, and
// vocabulary helpers used by the extractors, the discovery scanner, the
// enricher, and the validator. Everything here is pure: no I/O, no
// logging, deterministic output for a given input.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugRe   = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRunRe = regexp.MustCompile(`-+`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe  = regexp.MustCompile(`\s+`)
	titleRe     = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	hspaceRe    = regexp.MustCompile(`[ \t]+`)
	newlineRe   = regexp.MustCompile(`\n{3,}`)
)

// Slugify converts a product or roaster name into a URL-friendly slug.
// Diacritics are folded to ASCII so "Café Peaberry" and "Cafe Peaberry"
// share a slug.
func Slugify(name string) string {
	if name == "" {
		return ""
	}
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	slug := strings.ToLower(folded)
	slug = nonSlugRe.ReplaceAllString(slug, "-")
	slug = hyphenRunRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CleanHTML strips markup from an HTML fragment and collapses whitespace,
// leaving plain text suitable for keyword matching.
func CleanHTML(html string) string {
	if html == "" {
		return ""
	}
	for _, tag := range []string{"script", "style"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, " ")
	}
	text := tagRe.ReplaceAllString(html, " ")
	text = decodeEntities(text)
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(text, " "))
}

// boilerplate phrases stripped from descriptions; storefront chrome that
// leaks into body_html.
var boilerplateRe = regexp.MustCompile(`(?i)add to cart|buy now|shipping information|return policy|click here|learn more|see more|read more`)

// CleanDescription normalizes a product description: markup removed,
// whitespace collapsed, storefront boilerplate dropped. Descriptions that
// are nothing but a JavaScript warning come back empty.
func CleanDescription(html string) string {
	text := CleanHTML(html)
	if strings.HasPrefix(text, "JavaScript seems to be disabled") {
		return ""
	}
	text = boilerplateRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(text, " "))
}

// ExtractTitle pulls the <title> from an HTML page.
func ExtractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// PageText converts a full HTML page to plaintext: scripts, styles, nav,
// and footer blocks are removed entirely, remaining tags stripped,
// entities decoded, whitespace collapsed. The result keeps paragraph
// breaks so downstream keyword scans see readable text.
func PageText(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")
	html = decodeEntities(html)

	html = hspaceRe.ReplaceAllString(html, " ")
	html = newlineRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&#8217;", "'",
		"&nbsp;", " ",
	)
	return r.Replace(s)
}
