package model

// Platform tags the commerce platform a site runs on. The set is closed:
// extractor dispatch is a table over these values, and anything unrecognized
// maps to PlatformGeneric.
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
	PlatformWordPress   Platform = "wordpress"
	PlatformWebflow     Platform = "webflow"
	PlatformGeneric     Platform = "generic"
)

// Detection is the platform classifier's output. Confidence is the fraction
// of the winning platform's signature weight that matched, in [0,1]. A
// confidence below the configured threshold forces the discovery path even
// when a platform was named.
type Detection struct {
	Platform   Platform `json:"platform"`
	Confidence float64  `json:"confidence"`
}

// SiteSignals bundles the cheap-to-obtain evidence the detector works from:
// selected response headers plus the landing page markup.
type SiteSignals struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	HTML    string            `json:"html,omitempty"`
}
