package discover

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
)

var soldOutRe = regexp.MustCompile(`(?i)sold[ -]out|out[ -]of[ -]stock`)

// ParseCandidate reads what a candidate page states outright into a
// product record. Every recovered field carries discovery provenance;
// whatever the page does not state stays empty for enrichment to fill.
func ParseCandidate(site model.Site, c model.Candidate) *model.Product {
	text := c.Text
	if text == "" {
		text = normalize.PageText(c.HTML)
	}
	name := strings.TrimSpace(c.Title)
	if name == "" {
		name = PageTitle(c.HTML)
	}
	description := strings.TrimSpace(c.Description)
	if description == "" {
		description = MetaDescription(c.HTML)
	}

	prices, multiPack := minePrices(c.HTML, text)
	p := &model.Product{
		RoasterID:     site.RoasterID,
		Name:          name,
		Slug:          candidateSlug(c.URL, name),
		Description:   description,
		SourceURL:     c.URL,
		NormalizedURL: normalize.URL(c.URL),
		ImageURL:      MetaImage(c.HTML),
		IsAvailable:   !soldOutRe.MatchString(c.HTML),
		Prices:        prices,
		ScrapedAt:     time.Now().UTC(),
	}
	if multiPack {
		p.Tags = append(p.Tags, "multi-pack")
	}

	attrs := normalize.Attrs{Name: name, Text: text}
	if roast, conf := normalize.MineRoast(attrs); conf > 0 && roast != model.RoastUnknown {
		p.RoastLevel = roast
	}
	if bean, conf := normalize.MineBean(attrs); conf > 0 && bean != model.BeanUnknown {
		p.BeanType = bean
	}
	if process, conf := normalize.MineProcess(attrs); conf > 0 && process != model.ProcessUnknown {
		p.ProcessingMethod = process
	}
	if region, conf := normalize.MineRegion(attrs); conf > 0 {
		p.RegionName = region
	}
	if flavors, conf := normalize.MineFlavors(attrs); conf > 0 {
		p.FlavorProfiles = flavors
	}
	p.BrewMethods = normalize.MineBrewMethods(text)
	if single, conf := normalize.MineSingleOrigin(attrs); conf > 0 {
		p.IsSingleOrigin = boolPtr(single)
	}
	if seasonal, conf := normalize.MineSeasonal(attrs); conf > 0 {
		p.IsSeasonal = boolPtr(seasonal)
	}

	p.SortPrices()
	p.Price250g = normalize.Price250g(p.Prices)

	stampDiscovered(p)
	p.Partial = len(p.MissingRequired()) > 0
	return p
}

func boolPtr(v bool) *bool { return &v }

// candidateSlug takes the last URL path segment when it looks like a
// slug, else slugifies the name.
func candidateSlug(rawURL, name string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		last := strings.TrimSuffix(segments[len(segments)-1], ".html")
		if last != "" && !strings.Contains(last, ".") {
			return normalize.Slugify(last)
		}
	}
	return normalize.Slugify(name)
}

var (
	// currencyAmountRe matches a displayed price: a symbol or "Rs."
	// prefix and a major-unit amount.
	currencyAmountRe = regexp.MustCompile(`(?i)(?:[$€₹£]|\brs\.?)\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// dataPriceRe matches machine-readable theme prices, which Shopify
	// stores in minor units.
	dataPriceRe = regexp.MustCompile(`(?i)data-product[_-]price="([0-9,.]+)"`)

	// markedPriceRes match amounts inside price-marked markup, major units.
	markedPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<[^>]*itemprop="price"[^>]*content="([0-9,.]+)"`),
		regexp.MustCompile(`(?i)<[^>]*class="[^"]*price[^"]*"[^>]*>\s*(?:<[^>]*>\s*)*(?:[$€₹£]|rs\.?)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
	}

	liRe     = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	optionRe = regexp.MustCompile(`(?is)<option[^>]*>(.*?)</option>`)
)

// minePrices pulls size/price tiers off a rendered product page. A
// fragment stating a weight and an amount together forms a tier; failing
// that, the page's most prominent single amount becomes the default-size
// price. The second return reports a bundle tier ("2 x 250g") so the
// record can carry the multi-pack tag.
func minePrices(html, text string) ([]model.PriceEntry, bool) {
	bySize := map[int]float64{}
	multiPack := false

	for _, block := range priceBlocks(html, text) {
		m := currencyAmountRe.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		price, ok := normalize.ParsePrice(m[1])
		if !ok || price <= 0 {
			continue
		}
		if count, per, ok := normalize.ParseMultiPack(block); ok {
			bySize[count*per] = price
			multiPack = true
			continue
		}
		grams, conf := normalize.ParseWeight(block)
		if conf == 0 || grams <= 0 {
			continue
		}
		bySize[grams] = price
	}

	if len(bySize) == 0 {
		if price, ok := singlePrice(html, text); ok {
			bySize[normalize.DefaultSizeGrams] = price
		}
	}

	entries := make([]model.PriceEntry, 0, len(bySize))
	for grams, price := range bySize {
		entries = append(entries, model.PriceEntry{SizeGrams: grams, Price: price})
	}
	return entries, multiPack
}

// priceBlocks are the page fragments scanned for weight+amount pairs:
// list items and option labels from the HTML, then text lines. Variant
// tiers almost always render as one of the three.
func priceBlocks(html, text string) []string {
	var blocks []string
	for _, re := range []*regexp.Regexp{liRe, optionRe} {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			if block := normalize.CleanHTML(m[1]); block != "" {
				blocks = append(blocks, block)
			}
		}
	}
	return append(blocks, strings.Split(text, "\n")...)
}

// singlePrice finds the page's primary displayed amount: machine-readable
// theme attributes first, then price-marked markup, then the first
// symbol-prefixed amount in the text.
func singlePrice(html, text string) (float64, bool) {
	if m := dataPriceRe.FindStringSubmatch(html); len(m) > 1 {
		if v, ok := normalize.ParsePrice(m[1]); ok && v > 0 {
			return normalize.FromMinorUnits(v), true
		}
	}
	for _, re := range markedPriceRes {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if v, ok := normalize.ParsePrice(m[1]); ok && v > 0 {
				return v, true
			}
		}
	}
	if m := currencyAmountRe.FindStringSubmatch(text); len(m) > 1 {
		if v, ok := normalize.ParsePrice(m[1]); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// stampDiscovered records discovery provenance for every field the page
// parse recovered.
func stampDiscovered(p *model.Product) {
	stamp := func(field string, populated bool) {
		if populated {
			p.Stamp(field, model.SourceDiscovery)
		}
	}
	stamp("name", p.Name != "")
	stamp("slug", p.Slug != "")
	stamp("description", p.Description != "")
	stamp("source_url", p.SourceURL != "")
	stamp("image_url", p.ImageURL != "")
	stamp("roast_level", p.RoastLevel != "" && p.RoastLevel != model.RoastUnknown)
	stamp("bean_type", p.BeanType != "" && p.BeanType != model.BeanUnknown)
	stamp("processing_method", p.ProcessingMethod != "" && p.ProcessingMethod != model.ProcessUnknown)
	stamp("region_name", p.RegionName != "")
	stamp("is_single_origin", p.IsSingleOrigin != nil)
	stamp("is_seasonal", p.IsSeasonal != nil)
	stamp("is_available", true)
	stamp("prices", len(p.Prices) > 0)
	stamp("price_250g", p.Price250g > 0)
	stamp("tags", len(p.Tags) > 0)
	stamp("flavor_profiles", len(p.FlavorProfiles) > 0)
	stamp("brew_methods", len(p.BrewMethods) > 0)
}
