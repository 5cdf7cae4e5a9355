package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// wooPageSize is the page size requested from the WooCommerce REST routes.
const wooPageSize = 100

// wooEndpoints are the product listing routes tried in order: the public
// Store API first, then the v3 REST route some shops leave readable, then
// the prefixed and query-string permalink variants, and finally the
// Shopify-shaped /products.json a few feed plugins expose.
var wooEndpoints = []string{
	"/wp-json/wc/store/products",
	"/wp-json/wc/v3/products",
	"/index.php/wp-json/wc/store/products",
	"/?rest_route=/wc/store/products",
	"/products.json",
}

type wooExtractor struct {
	fetcher  *fetch.Client
	maxPages int
}

func (e *wooExtractor) Platform() model.Platform { return model.PlatformWooCommerce }

func (e *wooExtractor) Extract(ctx context.Context, site model.Site) (*Extraction, error) {
	base := strings.TrimRight(site.URL, "/")

	var lastErr error
	for _, endpoint := range wooEndpoints {
		out, err := e.walkEndpoint(ctx, base, endpoint, site)
		if err != nil {
			lastErr = err
			zap.L().Debug("extract: woocommerce route failed, trying next",
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}
		if out.FeedPages == 0 {
			// The route answered but had no items; another route may be
			// the real feed.
			continue
		}
		return out, nil
	}
	if lastErr != nil {
		return nil, eris.Wrapf(lastErr, "extract: no woocommerce feed for %s", base)
	}
	return &Extraction{}, nil
}

func (e *wooExtractor) walkEndpoint(ctx context.Context, base, endpoint string, site model.Site) (*Extraction, error) {
	if endpoint == "/products.json" {
		return walkShopifyFeed(ctx, e.fetcher, base, e.maxPages, site)
	}

	out := &Extraction{}
	for page := 1; page <= e.maxPages; page++ {
		pageURL := wooPageURL(base, endpoint, page)

		var items []wooProduct
		if err := e.fetcher.GetJSON(ctx, pageURL, &items); err != nil {
			if out.FeedPages == 0 {
				return nil, err
			}
			zap.L().Warn("extract: feed page failed, keeping earlier pages",
				zap.String("url", pageURL),
				zap.Error(err))
			out.Partial = true
			out.Truncated = true
			return out, nil
		}
		if len(items) == 0 {
			break
		}

		out.FeedPages++
		for i := range items {
			p := wooToProduct(&items[i], base, site)
			if p == nil {
				continue
			}
			if p.Partial {
				out.Partial = true
			}
			out.Products = append(out.Products, p)
		}
		if len(items) < wooPageSize {
			break
		}
	}
	return out, nil
}

// wooPageURL appends pagination to a route, keeping the query-string
// permalink variant valid.
func wooPageURL(base, endpoint string, page int) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%sper_page=%d&page=%d", base, endpoint, sep, wooPageSize, page)
}

// wooProduct is the union of the Store API and v3 REST item shapes. The
// fields the routes share line up; the rest stay zero on the route that
// lacks them.
type wooProduct struct {
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	Permalink        string          `json:"permalink"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Prices           *wooPrices      `json:"prices"`
	Price            feedPrice       `json:"price"`
	PriceHTML        string          `json:"price_html"`
	StockStatus      string          `json:"stock_status"`
	IsInStock        *bool           `json:"is_in_stock"`
	Images           []wooImage      `json:"images"`
	Categories       []wooTerm       `json:"categories"`
	Tags             []wooTerm       `json:"tags"`
	Attributes       []wooAttribute  `json:"attributes"`
	Variations       json.RawMessage `json:"variations"`
}

// wooPrices is the Store API price block: minor-unit integer strings
// scaled by CurrencyMinorUnit.
type wooPrices struct {
	Price             string `json:"price"`
	RegularPrice      string `json:"regular_price"`
	SalePrice         string `json:"sale_price"`
	CurrencyMinorUnit int    `json:"currency_minor_unit"`
}

// amount returns the effective price in major units.
func (pr *wooPrices) amount() (float64, bool) {
	for _, s := range []string{pr.Price, pr.RegularPrice, pr.SalePrice} {
		v, ok := normalize.ParsePrice(s)
		if !ok {
			continue
		}
		// A decimal point means the store already serialized major units.
		if !strings.Contains(s, ".") && pr.CurrencyMinorUnit > 0 {
			v /= math.Pow(10, float64(pr.CurrencyMinorUnit))
		}
		return v, true
	}
	return 0, false
}

type wooImage struct {
	Src string `json:"src"`
}

type wooTerm struct {
	Name string `json:"name"`
}

type wooAttribute struct {
	Name    string    `json:"name"`
	Option  string    `json:"option"`
	Options []string  `json:"options"`
	Terms   []wooTerm `json:"terms"`
}

// values merges the three spellings the routes use for attribute values.
func (a wooAttribute) values() []string {
	var vals []string
	if a.Option != "" {
		vals = append(vals, a.Option)
	}
	vals = append(vals, a.Options...)
	for _, t := range a.Terms {
		if t.Name != "" {
			vals = append(vals, t.Name)
		}
	}
	return vals
}

// wooVariation is a variation object as embedded by feeds that expand
// them inline. The v3 route lists bare variation ids instead, which carry
// nothing and decode to nil.
type wooVariation struct {
	Price      feedPrice    `json:"price"`
	Weight     string       `json:"weight"`
	Attributes []wooVarAttr `json:"attributes"`
}

type wooVarAttr struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Option string `json:"option"`
}

func wooVariationEntries(raw json.RawMessage) []wooVariation {
	if len(raw) == 0 {
		return nil
	}
	var vars []wooVariation
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil
	}
	return vars
}

// sizeLabel returns the variation's pack-size attribute value, if any.
func (v wooVariation) sizeLabel() string {
	for _, a := range v.Attributes {
		switch structuredKey(a.Name) {
		case "size", "weight", "quantity", "bag_size", "pack_size":
			if a.Value != "" {
				return a.Value
			}
			return a.Option
		}
	}
	return ""
}

// wooToProduct maps one REST item to a product record. Items without a
// name are skipped.
func wooToProduct(wp *wooProduct, base string, site model.Site) *model.Product {
	name := strings.TrimSpace(wp.Name)
	if name == "" {
		return nil
	}

	slug := wp.Slug
	if slug == "" {
		slug = permalinkSlug(wp.Permalink)
	}
	if slug == "" {
		slug = normalize.Slugify(name)
	}
	sourceURL := wp.Permalink
	if sourceURL == "" {
		sourceURL = base + "/product/" + slug
	}

	p := &model.Product{
		RoasterID:     site.RoasterID,
		Name:          name,
		Slug:          slug,
		Description:   normalize.CleanDescription(strings.TrimSpace(wp.ShortDescription + " " + wp.Description)),
		SourceURL:     sourceURL,
		NormalizedURL: normalize.URL(sourceURL),
		ScrapedAt:     time.Now().UTC(),
	}
	if len(wp.Images) > 0 {
		p.ImageURL = wp.Images[0].Src
	}
	p.IsAvailable = wp.StockStatus == "instock" || (wp.IsInStock != nil && *wp.IsInStock)

	for _, t := range wp.Tags {
		if t.Name != "" {
			p.Tags = append(p.Tags, t.Name)
		}
	}
	// Categories ride along as tags; stores put "Single Origin" and roast
	// names there.
	for _, c := range wp.Categories {
		if c.Name != "" {
			p.Tags = appendTag(p.Tags, c.Name)
		}
	}

	// Structured attributes and key:value tag pairs share one routing
	// pass; attributes are listed first so they win the dedicated fields.
	type kv struct {
		key  string
		vals []string
	}
	var pairs []kv
	for _, attr := range wp.Attributes {
		if vals := attr.values(); len(vals) > 0 {
			pairs = append(pairs, kv{structuredKey(attr.Name), vals})
		}
	}
	for _, tag := range p.Tags {
		if k, v, ok := strings.Cut(tag, ":"); ok {
			if v = strings.TrimSpace(v); v != "" {
				pairs = append(pairs, kv{structuredKey(k), []string{v}})
			}
		}
	}

	structured := map[string]string{}
	var grindValues, sizeValues []string
	for _, pair := range pairs {
		first := strings.TrimSpace(pair.vals[0])
		joined := strings.Join(pair.vals, ", ")
		switch pair.key {
		case "acidity":
			if p.Acidity == "" {
				p.Acidity = strings.ToLower(first)
			}
		case "body":
			if p.Body == "" {
				p.Body = strings.ToLower(first)
			}
		case "sweetness":
			if p.Sweetness == "" {
				p.Sweetness = strings.ToLower(first)
			}
		case "aroma":
			if p.Aroma == "" {
				p.Aroma = strings.ToLower(first)
			}
		case "milk", "with_milk", "with_milk_suitable", "suitable_with_milk":
			if p.WithMilkSuitable == nil {
				p.WithMilkSuitable = boolPtr(affirmative(first))
			}
		case "varietal", "varietals", "variety":
			if len(p.Varietals) == 0 {
				p.Varietals = splitList(joined)
			}
			setIfMissing(structured, "varietal", joined)
		case "altitude", "elevation", "altitude_masl":
			if p.AltitudeMeters == 0 {
				p.AltitudeMeters = parseAltitude(first)
			}
		case "flavor", "flavour", "flavor_notes", "flavour_notes", "tasting_notes", "notes":
			setIfMissing(structured, "tasting_notes", joined)
		case "roast_profile", "roast_type":
			setIfMissing(structured, "roast", first)
		case "bean", "beans":
			setIfMissing(structured, "bean_type", first)
		case "grind", "grind_size", "grind_type":
			grindValues = append(grindValues, pair.vals...)
		case "size", "weight", "quantity", "bag_size", "pack_size":
			sizeValues = append(sizeValues, pair.vals...)
		default:
			setIfMissing(structured, pair.key, first)
		}
	}

	bySize := map[int]float64{}
	multiPack := false
	for _, vr := range wooVariationEntries(wp.Variations) {
		price, ok := parseFeedPrice(string(vr.Price))
		if !ok {
			continue
		}
		grams := 0
		label := vr.sizeLabel()
		if count, per, ok := normalize.ParseMultiPack(label); ok {
			grams = count * per
			multiPack = true
		} else if g, conf := normalize.ParseWeight(label); conf > 0 {
			grams = g
		} else if g, conf := normalize.ParseWeight(vr.Weight); conf > 0 {
			grams = g
		} else {
			grams = normalize.DefaultSizeGrams
		}
		bySize[grams] = price
	}
	if len(bySize) == 0 {
		var price float64
		var ok bool
		if wp.Prices != nil {
			price, ok = wp.Prices.amount()
		}
		if !ok {
			price, ok = parseFeedPrice(string(wp.Price))
		}
		if !ok {
			price, ok = priceFromHTML(wp.PriceHTML)
		}
		if ok {
			grams := 0
			if len(sizeValues) == 1 {
				if count, per, mok := normalize.ParseMultiPack(sizeValues[0]); mok {
					grams = count * per
					multiPack = true
				} else if g, conf := normalize.ParseWeight(sizeValues[0]); conf > 0 {
					grams = g
				}
			}
			if grams <= 0 {
				if g, conf := normalize.ParseWeight(name); conf > 0 {
					grams = g
				} else {
					grams = normalize.DefaultSizeGrams
				}
			}
			bySize[grams] = price
		}
	}
	for grams, price := range bySize {
		p.Prices = append(p.Prices, model.PriceEntry{SizeGrams: grams, Price: price})
	}
	if multiPack {
		p.Tags = appendTag(p.Tags, "multi-pack")
	}

	if len(grindValues) > 0 {
		p.BrewMethods = normalize.MineBrewMethods(strings.Join(grindValues, ", "))
	}

	finalizeRecord(p, normalize.Attrs{
		Name:       name,
		Text:       p.Description,
		Tags:       p.Tags,
		Structured: structured,
	})
	return p
}

func setIfMissing(m map[string]string, key, val string) {
	if _, ok := m[key]; !ok && strings.TrimSpace(val) != "" {
		m[key] = val
	}
}

func affirmative(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "suitable", "recommended":
		return true
	}
	return false
}

var listSepRe = regexp.MustCompile(`[,;/&+]`)

func splitList(s string) []string {
	var out []string
	for _, part := range listSepRe.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var altitudeRe = regexp.MustCompile(`\d[\d,]*`)

// parseAltitude reads the leading figure out of strings like "1,850 masl"
// or "1800-2000 m".
func parseAltitude(s string) int {
	m := altitudeRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

var (
	priceTokenRe = regexp.MustCompile(`\d[\d,]*(?:\.\d{1,2})?`)
	entityRe     = regexp.MustCompile(`&#?\w+;`)
)

// priceFromHTML pulls the first amount out of a rendered price snippet
// like "<span>&#8377;450.00</span>". Entities go first so a numeric
// currency entity is not read as the price.
func priceFromHTML(html string) (float64, bool) {
	if html == "" {
		return 0, false
	}
	token := priceTokenRe.FindString(entityRe.ReplaceAllString(html, " "))
	if token == "" {
		return 0, false
	}
	return parseFeedPrice(token)
}

// permalinkSlug takes the last path segment of a permalink, rejecting
// values that look like a bare host or file.
func permalinkSlug(permalink string) string {
	trimmed := strings.TrimRight(permalink, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if strings.Contains(trimmed, "?") || strings.Contains(trimmed, ".") {
		return ""
	}
	return trimmed
}
