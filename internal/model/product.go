package model

import (
	"sort"
	"time"
)

// RoastLevel is the closed vocabulary for roast levels.
type RoastLevel string

const (
	RoastLight       RoastLevel = "light"
	RoastLightMedium RoastLevel = "light-medium"
	RoastMedium      RoastLevel = "medium"
	RoastMediumDark  RoastLevel = "medium-dark"
	RoastDark        RoastLevel = "dark"
	RoastCity        RoastLevel = "city"
	RoastCityPlus    RoastLevel = "city-plus"
	RoastFullCity    RoastLevel = "full-city"
	RoastFrench      RoastLevel = "french"
	RoastItalian     RoastLevel = "italian"
	RoastCinnamon    RoastLevel = "cinnamon"
	RoastFilter      RoastLevel = "filter"
	RoastEspresso    RoastLevel = "espresso"
	RoastOmni        RoastLevel = "omniroast"
	RoastUnknown     RoastLevel = "unknown"
)

// KnownRoastLevels is the set of accepted roast level values.
var KnownRoastLevels = map[RoastLevel]bool{
	RoastLight: true, RoastLightMedium: true, RoastMedium: true,
	RoastMediumDark: true, RoastDark: true, RoastCity: true,
	RoastCityPlus: true, RoastFullCity: true, RoastFrench: true,
	RoastItalian: true, RoastCinnamon: true, RoastFilter: true,
	RoastEspresso: true, RoastOmni: true, RoastUnknown: true,
}

// BeanType is the closed vocabulary for bean species/compositions.
type BeanType string

const (
	BeanArabica        BeanType = "arabica"
	BeanRobusta        BeanType = "robusta"
	BeanLiberica       BeanType = "liberica"
	BeanBlend          BeanType = "blend"
	BeanMixedArabica   BeanType = "mixed-arabica"
	BeanArabicaRobusta BeanType = "arabica-robusta"
	BeanUnknown        BeanType = "unknown"
)

// KnownBeanTypes is the set of accepted bean type values.
var KnownBeanTypes = map[BeanType]bool{
	BeanArabica: true, BeanRobusta: true, BeanLiberica: true,
	BeanBlend: true, BeanMixedArabica: true, BeanArabicaRobusta: true,
	BeanUnknown: true,
}

// ProcessingMethod is the closed vocabulary for post-harvest processing.
type ProcessingMethod string

const (
	ProcessWashed       ProcessingMethod = "washed"
	ProcessNatural      ProcessingMethod = "natural"
	ProcessHoney        ProcessingMethod = "honey"
	ProcessPulpedNat    ProcessingMethod = "pulped-natural"
	ProcessAnaerobic    ProcessingMethod = "anaerobic"
	ProcessMonsooned    ProcessingMethod = "monsooned"
	ProcessWetHulled    ProcessingMethod = "wet-hulled"
	ProcessCarbonic     ProcessingMethod = "carbonic-maceration"
	ProcessDoubleFerm   ProcessingMethod = "double-fermented"
	ProcessUnknown      ProcessingMethod = "unknown"
)

// KnownProcessingMethods is the set of accepted processing method values.
var KnownProcessingMethods = map[ProcessingMethod]bool{
	ProcessWashed: true, ProcessNatural: true, ProcessHoney: true,
	ProcessPulpedNat: true, ProcessAnaerobic: true, ProcessMonsooned: true,
	ProcessWetHulled: true, ProcessCarbonic: true, ProcessDoubleFerm: true,
	ProcessUnknown: true,
}

// PriceEntry is one size/price tier of a product. Entries are unique by
// SizeGrams within a product.
type PriceEntry struct {
	SizeGrams int     `json:"size_grams"`
	Price     float64 `json:"price"`
}

// Product is the canonical record produced by the pipeline.
type Product struct {
	ID            string `json:"id,omitempty"`
	RoasterID     string `json:"roaster_id"`
	Name          string `json:"name"`
	Slug          string `json:"slug,omitempty"`
	Description   string `json:"description,omitempty"`
	SourceURL     string `json:"source_url"`
	NormalizedURL string `json:"normalized_url,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`

	RoastLevel       RoastLevel       `json:"roast_level,omitempty"`
	BeanType         BeanType         `json:"bean_type,omitempty"`
	ProcessingMethod ProcessingMethod `json:"processing_method,omitempty"`
	RegionName       string           `json:"region_name,omitempty"`

	IsSingleOrigin *bool `json:"is_single_origin,omitempty"`
	IsSeasonal     *bool `json:"is_seasonal,omitempty"`
	IsAvailable    bool  `json:"is_available"`
	IsFeatured     bool  `json:"is_featured,omitempty"`

	Prices    []PriceEntry `json:"prices"`
	Price250g float64      `json:"price_250g,omitempty"`

	Tags           []string `json:"tags,omitempty"`
	FlavorProfiles []string `json:"flavor_profiles,omitempty"`
	BrewMethods    []string `json:"brew_methods,omitempty"`

	Acidity          string   `json:"acidity,omitempty"`
	Body             string   `json:"body,omitempty"`
	Sweetness        string   `json:"sweetness,omitempty"`
	Aroma            string   `json:"aroma,omitempty"`
	WithMilkSuitable *bool    `json:"with_milk_suitable,omitempty"`
	Varietals        []string `json:"varietals,omitempty"`
	AltitudeMeters   int      `json:"altitude_meters,omitempty"`

	// Provenance maps a populated field name to the stage that produced it.
	Provenance map[string]FieldProvenance `json:"field_provenance,omitempty"`

	// Flags carries validation warnings that accepted records keep, such as
	// a price decreasing as size increases. Flagged, never silently dropped.
	Flags []string `json:"flags,omitempty"`

	// Partial marks a record missing at least one required field.
	Partial bool `json:"partial,omitempty"`

	ScrapedAt time.Time `json:"scraped_at,omitempty"`
}

// Required fields: a product without these is Partial and a candidate for
// enrichment (name, at least one price, and roast level or bean type).
func (p *Product) MissingRequired() []string {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if len(p.Prices) == 0 {
		missing = append(missing, "prices")
	}
	roastKnown := p.RoastLevel != "" && p.RoastLevel != RoastUnknown
	beanKnown := p.BeanType != "" && p.BeanType != BeanUnknown
	if !roastKnown && !beanKnown {
		missing = append(missing, "roast_level")
	}
	return missing
}

// SortPrices orders price entries by ascending size.
func (p *Product) SortPrices() {
	sort.Slice(p.Prices, func(i, j int) bool {
		return p.Prices[i].SizeGrams < p.Prices[j].SizeGrams
	})
}

// PriceOrderingViolations returns the sizes at which price decreases as size
// increases. Violations are reported, not repaired: the entries stay as
// extracted so downstream consumers can see the raw feed data.
func (p *Product) PriceOrderingViolations() []int {
	sorted := make([]PriceEntry, len(p.Prices))
	copy(sorted, p.Prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SizeGrams < sorted[j].SizeGrams
	})

	var violations []int
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Price < sorted[i-1].Price {
			violations = append(violations, sorted[i].SizeGrams)
		}
	}
	return violations
}

// Roaster identifies the seller a product belongs to.
type Roaster struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug,omitempty"`
	WebsiteURL string `json:"website_url"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Platform   string `json:"platform,omitempty"`
	IsActive   bool   `json:"is_active"`
}
