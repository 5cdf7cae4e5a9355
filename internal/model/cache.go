package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// CacheKind distinguishes what a cache entry holds.
type CacheKind string

const (
	CacheKindPage       CacheKind = "page"
	CacheKindProductSet CacheKind = "productSet"
)

// StabilityCategory classifies a field by how often its value is expected to
// change, which drives cache re-validation cadence.
type StabilityCategory string

const (
	HighlyStable     StabilityCategory = "highlyStable"     // fundamentals; yearly
	ModeratelyStable StabilityCategory = "moderatelyStable" // details; quarterly
	Variable         StabilityCategory = "variable"         // pricing, marketing; monthly
	HighlyVariable   StabilityCategory = "highlyVariable"   // stock, features; weekly
)

// AllStabilityCategories lists every category, most stable first.
func AllStabilityCategories() []StabilityCategory {
	return []StabilityCategory{HighlyStable, ModeratelyStable, Variable, HighlyVariable}
}

// FieldStability maps product fields to their stability category. Fields not
// listed default to Variable. Overridable via the stability config file.
var FieldStability = map[string]StabilityCategory{
	// Coffee fundamentals rarely change.
	"name":              HighlyStable,
	"slug":              HighlyStable,
	"roaster_id":        HighlyStable,
	"bean_type":         HighlyStable,
	"processing_method": HighlyStable,
	"region_name":       HighlyStable,
	"is_single_origin":  HighlyStable,
	"varietals":         HighlyStable,
	"altitude_meters":   HighlyStable,

	// Product details that change occasionally.
	"description":        ModeratelyStable,
	"roast_level":        ModeratelyStable,
	"source_url":         ModeratelyStable,
	"acidity":            ModeratelyStable,
	"body":               ModeratelyStable,
	"sweetness":          ModeratelyStable,
	"aroma":              ModeratelyStable,
	"with_milk_suitable": ModeratelyStable,
	"flavor_profiles":    ModeratelyStable,
	"brew_methods":       ModeratelyStable,

	// Marketing and seasonal content.
	"image_url":   Variable,
	"is_seasonal": Variable,
	"tags":        Variable,
	"prices":      Variable,
	"price_250g":  Variable,

	// Stock and merchandising.
	"is_available": HighlyVariable,
	"is_featured":  HighlyVariable,
}

// CategoryOf returns a field's stability category, defaulting to Variable.
func CategoryOf(field string) StabilityCategory {
	if c, ok := FieldStability[field]; ok {
		return c
	}
	return Variable
}

// CacheEntry is one persisted cache record. LastVerifiedAt is stamped per
// stability category so staleness can be judged for the fields a caller
// actually needs instead of the whole entry.
type CacheEntry struct {
	Key         string                          `json:"key"`
	URL         string                          `json:"url"`
	Kind        CacheKind                       `json:"kind"`
	Payload     json.RawMessage                 `json:"payload"`
	Fingerprint string                          `json:"fingerprint"`
	FetchedAt   time.Time                       `json:"fetched_at"`
	LastVerified map[StabilityCategory]time.Time `json:"last_verified"`
}

// CacheKey derives the stable identity of a cache entry from (url, kind).
func CacheKey(url string, kind CacheKind) string {
	sum := sha256.Sum256([]byte(url + "|" + string(kind)))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes a payload so an unchanged refetch can refresh
// verification stamps without re-validating.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// StaleCategories returns the categories of e whose verification stamp is
// older than the per-category maxAge, as of now. A missing stamp counts as
// stale. Only the requested categories are examined.
func (e *CacheEntry) StaleCategories(now time.Time, maxAge map[StabilityCategory]time.Duration, want []StabilityCategory) []StabilityCategory {
	var stale []StabilityCategory
	for _, cat := range want {
		verified, ok := e.LastVerified[cat]
		if !ok {
			stale = append(stale, cat)
			continue
		}
		age, hasAge := maxAge[cat]
		if !hasAge {
			stale = append(stale, cat)
			continue
		}
		if now.Sub(verified) > age {
			stale = append(stale, cat)
		}
	}
	return stale
}
