// Package platform classifies which commerce platform a site runs on from
// cheap evidence: the landing page markup and a few response headers. The
// classifier is pure and never errors; unrecognizable sites come back as
// PlatformGeneric with zero confidence.
package platform

import (
	"regexp"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// genericThreshold is the minimum matched-weight fraction for naming a
// platform at all. Below it the site is treated as generic.
const genericThreshold = 0.40

type rule struct {
	name   string
	weight int
	match  func(sig *model.SiteSignals, lower string) bool
}

type signature struct {
	platform model.Platform
	rules    []rule
}

// Signature order breaks score ties: WooCommerce sites are WordPress sites
// underneath, so the more specific platform is listed first.
var signatures = []signature{
	{
		platform: model.PlatformShopify,
		rules: []rule{
			{"shopify-cdn", 40, func(sig *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "cdn.shopify.com") ||
					hasHeader(sig.Headers, "x-shopify-stage") ||
					hasHeader(sig.Headers, "x-sorting-hat-shopid") ||
					hasHeader(sig.Headers, "x-shopid")
			}},
			{"shopify-attr", 30, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "data-shopify")
			}},
			{"shopify-theme", 20, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "shopify.theme")
			}},
			{"shopify-paths", 10, func(sig *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "/cdn/shop/") || strings.Contains(sig.URL, "/cdn/shop/")
			}},
		},
	},
	{
		platform: model.PlatformWooCommerce,
		rules: []rule{
			{"woo-body-class", 40, func(_ *model.SiteSignals, lower string) bool {
				return wooBodyClassRe.MatchString(lower)
			}},
			{"woo-stylesheet", 20, func(_ *model.SiteSignals, lower string) bool {
				return wooStylesheetRe.MatchString(lower)
			}},
			{"woo-mention", 20, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "woocommerce")
			}},
			{"woo-selectors", 20, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "add_to_cart") ||
					strings.Contains(lower, "wc-block") ||
					strings.Contains(lower, "woocommerce-product") ||
					strings.Contains(lower, "woocommerce-cart")
			}},
		},
	},
	{
		platform: model.PlatformMagento,
		rules: []rule{
			{"magento-generator", 60, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(metaGenerator(lower), "magento")
			}},
			{"magento-markers", 25, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "data-mage-init") ||
					strings.Contains(lower, "x-magento-init") ||
					strings.Contains(lower, "mage-")
			}},
			{"magento-static", 15, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "/static/version") ||
					strings.Contains(lower, "/pub/static/frontend/")
			}},
		},
	},
	{
		platform: model.PlatformWordPress,
		rules: []rule{
			{"wp-generator", 40, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(metaGenerator(lower), "wordpress")
			}},
			{"wp-content", 30, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "/wp-content/") || strings.Contains(lower, "/wp-includes/")
			}},
			{"wp-json", 30, func(sig *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "/wp-json") ||
					strings.Contains(strings.ToLower(headerValue(sig.Headers, "link")), "api.w.org")
			}},
		},
	},
	{
		platform: model.PlatformWebflow,
		rules: []rule{
			{"webflow-generator", 60, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(metaGenerator(lower), "webflow")
			}},
			{"webflow-require", 30, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "webflow.require")
			}},
			{"webflow-dyn", 10, func(_ *model.SiteSignals, lower string) bool {
				return strings.Contains(lower, "w-dyn-item")
			}},
		},
	},
}

var (
	wooBodyClassRe  = regexp.MustCompile(`<body[^>]*class="[^"]*woocommerce`)
	wooStylesheetRe = regexp.MustCompile(`<link[^>]*href="[^"]*woocommerce`)

	// Both attribute orders occur in the wild.
	metaGeneratorRes = []*regexp.Regexp{
		regexp.MustCompile(`<meta[^>]*name=["']generator["'][^>]*content=["']([^"']*)["']`),
		regexp.MustCompile(`<meta[^>]*content=["']([^"']*)["'][^>]*name=["']generator["']`),
	}
)

// Detect scores every platform signature against the signals and returns the
// best match. Confidence is matched weight over total signature weight.
func Detect(sig model.SiteSignals) model.Detection {
	lower := strings.ToLower(sig.HTML)

	best := model.Detection{Platform: model.PlatformGeneric}
	bestScore := -1
	for _, s := range signatures {
		matched, total := 0, 0
		for _, r := range s.rules {
			total += r.weight
			if r.match(&sig, lower) {
				matched += r.weight
			}
		}
		if matched > bestScore {
			bestScore = matched
			best = model.Detection{
				Platform:   s.platform,
				Confidence: float64(matched) / float64(total),
			}
		}
	}

	if best.Confidence < genericThreshold {
		return model.Detection{Platform: model.PlatformGeneric, Confidence: 0}
	}
	return best
}

// metaGenerator returns the lowercased content of the generator meta tag,
// or "" when the page has none.
func metaGenerator(lower string) string {
	for _, re := range metaGeneratorRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	}
	return ""
}

func hasHeader(headers map[string]string, key string) bool {
	for k := range headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
