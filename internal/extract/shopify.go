package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/fetch"
	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// shopifyPageSize is the hard cap Shopify enforces on /products.json.
const shopifyPageSize = 250

// shopifyExtractor walks the public storefront feed at /products.json.
type shopifyExtractor struct {
	fetcher  *fetch.Client
	maxPages int
}

func (e *shopifyExtractor) Platform() model.Platform { return model.PlatformShopify }

func (e *shopifyExtractor) Extract(ctx context.Context, site model.Site) (*Extraction, error) {
	base := strings.TrimRight(site.URL, "/")
	out, err := walkShopifyFeed(ctx, e.fetcher, base, e.maxPages, site)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: shopify feed for %s", base)
	}
	return out, nil
}

// walkShopifyFeed pages through a Shopify-shaped /products.json until an
// empty page or the page cap. A failure before any page parsed is an
// error; a failure after that returns the earlier pages with Partial set.
// Shared with the woocommerce extractor for stores whose feed plugin
// mirrors the Shopify shape.
func walkShopifyFeed(ctx context.Context, fetcher *fetch.Client, base string, maxPages int, site model.Site) (*Extraction, error) {
	out := &Extraction{}
	for page := 1; page <= maxPages; page++ {
		feedURL := fmt.Sprintf("%s/products.json?limit=%d&page=%d", base, shopifyPageSize, page)

		var feed shopifyFeed
		if err := fetcher.GetJSON(ctx, feedURL, &feed); err != nil {
			if out.FeedPages == 0 {
				return nil, err
			}
			zap.L().Warn("extract: feed page failed, keeping earlier pages",
				zap.String("url", feedURL),
				zap.Error(err))
			out.Partial = true
			out.Truncated = true
			return out, nil
		}
		if len(feed.Products) == 0 {
			break
		}

		out.FeedPages++
		for i := range feed.Products {
			p := shopifyToProduct(&feed.Products[i], base, site)
			if p == nil {
				continue
			}
			if p.Partial {
				out.Partial = true
			}
			out.Products = append(out.Products, p)
		}
		if len(feed.Products) < shopifyPageSize {
			break
		}
	}
	return out, nil
}

type shopifyFeed struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProduct struct {
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	BodyHTML    string           `json:"body_html"`
	ProductType string           `json:"product_type"`
	Tags        feedTags         `json:"tags"`
	Variants    []shopifyVariant `json:"variants"`
	Options     []shopifyOption  `json:"options"`
	Images      []shopifyImage   `json:"images"`
}

type shopifyVariant struct {
	Title     string    `json:"title"`
	Price     feedPrice `json:"price"`
	Grams     int       `json:"grams"`
	Available bool      `json:"available"`
	Option1   string    `json:"option1"`
	Option2   string    `json:"option2"`
	Option3   string    `json:"option3"`
}

type shopifyOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

// shopifyToProduct maps one feed item to a product record. Items without
// a title or handle are storefront stubs and are skipped.
func shopifyToProduct(sp *shopifyProduct, base string, site model.Site) *model.Product {
	if sp.Title == "" || sp.Handle == "" {
		return nil
	}

	sourceURL := base + "/products/" + sp.Handle
	p := &model.Product{
		RoasterID:     site.RoasterID,
		Name:          sp.Title,
		Slug:          sp.Handle,
		Description:   normalize.CleanDescription(sp.BodyHTML),
		SourceURL:     sourceURL,
		NormalizedURL: normalize.URL(sourceURL),
		Tags:          sp.Tags,
		ScrapedAt:     time.Now().UTC(),
	}
	if len(sp.Images) > 0 {
		p.ImageURL = sp.Images[0].Src
	}

	bySize := make(map[int]float64, len(sp.Variants))
	multiPack := false
	for _, v := range sp.Variants {
		price, ok := parseFeedPrice(string(v.Price))
		if !ok {
			continue
		}
		grams := v.Grams
		if count, per, ok := normalize.ParseMultiPack(v.Title); ok {
			grams = count * per
			multiPack = true
		} else if grams <= 0 {
			grams = shopifyVariantGrams(v)
		}
		// Later variants win a size collision: feeds list corrections last.
		bySize[grams] = price
		if v.Available {
			p.IsAvailable = true
		}
	}
	for grams, price := range bySize {
		p.Prices = append(p.Prices, model.PriceEntry{SizeGrams: grams, Price: price})
	}
	if multiPack {
		p.Tags = appendTag(p.Tags, "multi-pack")
	}

	attrs := normalize.Attrs{
		Name:       sp.Title,
		Text:       p.Description,
		Tags:       p.Tags,
		Structured: map[string]string{},
	}
	if sp.ProductType != "" {
		// Stores put "Dark Roast" or "Single Origin" in the product type,
		// where the tag matchers can see it.
		attrs.Tags = append(append([]string{}, p.Tags...), sp.ProductType)
	}
	var grindValues []string
	for _, opt := range sp.Options {
		if len(opt.Values) == 0 {
			continue
		}
		key := structuredKey(opt.Name)
		if key == "grind" || key == "grind_size" || key == "grind_type" {
			grindValues = append(grindValues, opt.Values...)
			continue
		}
		if _, exists := attrs.Structured[key]; !exists {
			attrs.Structured[key] = opt.Values[0]
		}
	}
	if len(grindValues) > 0 {
		p.BrewMethods = normalize.MineBrewMethods(strings.Join(grindValues, ", "))
	}

	finalizeRecord(p, attrs)
	return p
}

// shopifyVariantGrams resolves a variant's pack size from its title or
// option values when the feed's grams field is absent.
func shopifyVariantGrams(v shopifyVariant) int {
	for _, s := range []string{v.Title, v.Option1, v.Option2, v.Option3} {
		if grams, conf := normalize.ParseWeight(s); conf > 0 {
			return grams
		}
	}
	return normalize.DefaultSizeGrams
}
