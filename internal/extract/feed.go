package extract

import (
	"encoding/json"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// feedTags tolerates both tag encodings seen in the wild: the storefront
// array form and the admin-style comma-separated string.
type feedTags []string

func (t *feedTags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = cleanTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = cleanTags(strings.Split(s, ","))
	return nil
}

func cleanTags(raw []string) []string {
	var tags []string
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// feedPrice tolerates feeds that serialize amounts as strings or numbers.
type feedPrice string

func (p *feedPrice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = feedPrice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = feedPrice(n.String())
	return nil
}

// parseFeedPrice reads a feed amount and applies the minor-unit
// correction, so "45000" paise and "450.00" rupees land on the same
// value.
func parseFeedPrice(s string) (float64, bool) {
	v, ok := normalize.ParsePrice(s)
	if !ok {
		return 0, false
	}
	return normalize.FromMinorUnits(v), true
}

// structuredKey normalizes an attribute or option name to the snake_case
// keys the attribute miners look up. WooCommerce taxonomy prefixes are
// stripped so "pa_roast-level" and "Roast Level" land on the same key.
func structuredKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "pa_")
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, "-", "_")
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return tags
		}
	}
	return append(tags, tag)
}

func boolPtr(v bool) *bool { return &v }

// finalizeRecord runs the attribute miners over whatever the feed did not
// state explicitly, derives the price summary, stamps provenance, and
// marks the record partial when a required field is still missing. Fields
// an extractor already set are left alone.
func finalizeRecord(p *model.Product, attrs normalize.Attrs) {
	if p.RoastLevel == "" {
		if roast, conf := normalize.MineRoast(attrs); conf > 0 && roast != model.RoastUnknown {
			p.RoastLevel = roast
		}
	}
	if p.BeanType == "" {
		if bean, conf := normalize.MineBean(attrs); conf > 0 && bean != model.BeanUnknown {
			p.BeanType = bean
		}
	}
	if p.ProcessingMethod == "" {
		if process, conf := normalize.MineProcess(attrs); conf > 0 && process != model.ProcessUnknown {
			p.ProcessingMethod = process
		}
	}
	if p.RegionName == "" {
		if region, conf := normalize.MineRegion(attrs); conf > 0 {
			p.RegionName = region
		}
	}
	if len(p.FlavorProfiles) == 0 {
		if flavors, conf := normalize.MineFlavors(attrs); conf > 0 {
			p.FlavorProfiles = flavors
		}
	}
	if len(p.BrewMethods) == 0 {
		p.BrewMethods = normalize.MineBrewMethods(attrs.Text)
	}
	if p.IsSingleOrigin == nil {
		if single, conf := normalize.MineSingleOrigin(attrs); conf > 0 {
			p.IsSingleOrigin = boolPtr(single)
		}
	}
	if p.IsSeasonal == nil {
		if seasonal, conf := normalize.MineSeasonal(attrs); conf > 0 {
			p.IsSeasonal = boolPtr(seasonal)
		}
	}

	p.SortPrices()
	p.Price250g = normalize.Price250g(p.Prices)

	stampStructured(p)
	p.Partial = len(p.MissingRequired()) > 0
}

// stampStructured records feed provenance for every populated field,
// including the ones the miners recovered from feed content. Everything
// known at this stage came from the structured feed.
func stampStructured(p *model.Product) {
	stamp := func(field string, populated bool) {
		if populated {
			p.Stamp(field, model.SourceStructured)
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
	stamp("acidity", p.Acidity != "")
	stamp("body", p.Body != "")
	stamp("sweetness", p.Sweetness != "")
	stamp("aroma", p.Aroma != "")
	stamp("with_milk_suitable", p.WithMilkSuitable != nil)
	stamp("varietals", len(p.Varietals) > 0)
	stamp("altitude_meters", p.AltitudeMeters > 0)
}
