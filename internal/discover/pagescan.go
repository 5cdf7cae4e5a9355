package discover

import (
	"regexp"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// CandidateThreshold is the indicator score at which a scanned page is
// proposed as a product candidate.
const CandidateThreshold = 3

// Indicator probes. Schema.org Product markup is near-definitive and
// counts double; everything else is circumstantial and counts once.
var (
	schemaProductRe = regexp.MustCompile(`(?i)itemtype=['"](?:https?:)?//schema\.org/Product['"]`)

	priceMarkerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<[^>]*class="[^"]*price[^"]*"`),
		regexp.MustCompile(`(?i)<[^>]*itemprop="price"`),
		regexp.MustCompile(`[$€₹£]\s*\d`),
		regexp.MustCompile(`(?i)price"?\s*:\s*["']?\d`),
		regexp.MustCompile(`(?i)data-product-price`),
	}

	addToCartRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)add[_ -]to[_ -]cart`),
		regexp.MustCompile(`(?i)add[_ -]to[_ -]bag`),
		regexp.MustCompile(`(?i)buy[_ -]now`),
		regexp.MustCompile(`(?i)\bpurchase\b`),
		regexp.MustCompile(`(?i)\bcheckout\b`),
	}

	productDetailRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<[^>]*id="[^"]*product[_-]detail`),
		regexp.MustCompile(`(?i)<[^>]*class="[^"]*product[_-]detail`),
		regexp.MustCompile(`(?i)<[^>]*class="[^"]*product[_-]info`),
		regexp.MustCompile(`(?i)<[^>]*id="[^"]*product[_-]description`),
		regexp.MustCompile(`(?i)<[^>]*class="[^"]*product[_-]image`),
	}

	variantSelectRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<select[^>]*>.*?</select>`),
		regexp.MustCompile(`(?i)<input[^>]*type=["']radio["']`),
	}

	productURLRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/products?/`),
		regexp.MustCompile(`(?i)/coffees?/`),
		regexp.MustCompile(`(?i)/beans/`),
		regexp.MustCompile(`(?i)/p/[^/]+$`),
		regexp.MustCompile(`(?i)\.html$`),
		regexp.MustCompile(`(?i)/item/`),
		regexp.MustCompile(`(?i)/buy/`),
	}
)

// coffeeTerms are vocabulary markers for coffee product copy. Two or
// more distinct terms on one page count as an indicator.
var coffeeTerms = []string{
	"roast level", "origin", "bean type", "single origin", "tasting notes",
	"flavor notes", "processing method", "arabica", "robusta", "altitude",
	"brewing",
}

// Score counts product-page indicators on a fetched page: schema.org
// Product markup (+2), price markers, add-to-cart affordances, product
// detail containers, variant selectors, coffee vocabulary, and a
// product-shaped URL (+1 each).
func Score(pageURL, html string) int {
	score := 0
	if schemaProductRe.MatchString(html) {
		score += 2
	}
	if matchAny(priceMarkerRes, html) {
		score++
	}
	if matchAny(addToCartRes, html) {
		score++
	}
	if matchAny(productDetailRes, html) {
		score++
	}
	if matchAny(variantSelectRes, html) {
		score++
	}
	if countTerms(html, coffeeTerms) >= 2 {
		score++
	}
	if matchAny(productURLRes, pageURL) {
		score++
	}
	return score
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func countTerms(html string, terms []string) int {
	lower := strings.ToLower(html)
	n := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}

var (
	h1Re       = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	metaDescRe = regexp.MustCompile(`(?i)<meta\s+name=["']description["'][^>]*content=["']([^"']+)["']`)
	ogImageRe  = regexp.MustCompile(`(?i)<meta\s+property=["']og:image["'][^>]*content=["']([^"']+)["']`)
)

// PageTitle names the page: the first <h1> when there is one, else the
// <title> with any store-name suffix cut off.
func PageTitle(html string) string {
	if m := h1Re.FindStringSubmatch(html); len(m) > 1 {
		if title := normalize.CleanHTML(m[1]); title != "" {
			return title
		}
	}
	return TrimTitle(normalize.ExtractTitle([]byte(html)))
}

// TrimTitle drops the "| Store Name" suffix title tags carry.
func TrimTitle(title string) string {
	if i := strings.Index(title, "|"); i > 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// MetaDescription pulls the page's meta description.
func MetaDescription(html string) string {
	if m := metaDescRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// MetaImage pulls the page's og:image URL.
func MetaImage(html string) string {
	if m := ogImageRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
