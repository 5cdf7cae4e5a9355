package pipeline

import (
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// dedupeByURL collapses accepted records sharing a normalized URL. The
// record with the higher aggregate confidence survives; the loser's
// higher-confidence fields are folded into it so no stage's best value is
// thrown away. First-seen order is kept.
func dedupeByURL(products []*model.Product) []*model.Product {
	if len(products) < 2 {
		return products
	}

	byURL := make(map[string]int, len(products))
	out := make([]*model.Product, 0, len(products))
	for _, p := range products {
		key := p.NormalizedURL
		if key == "" {
			key = p.SourceURL
		}
		idx, seen := byURL[key]
		if !seen {
			byURL[key] = len(out)
			out = append(out, p)
			continue
		}

		kept := out[idx]
		winner, loser := kept, p
		if p.AggregateConfidence() > kept.AggregateConfidence() {
			winner, loser = p, kept
			out[idx] = p
		}
		mergeFields(winner, loser)
		zap.L().Debug("pipeline: merged duplicate record",
			zap.String("url", key),
			zap.String("kept", winner.Name),
		)
	}
	return out
}

// mergeFields folds every field the loser knows with strictly higher
// confidence into the winner, stamp included.
func mergeFields(winner, loser *model.Product) {
	for field := range loser.Provenance {
		if loser.FieldConfidence(field) > winner.FieldConfidence(field) {
			copyField(winner, loser, field)
		}
	}
	winner.Partial = len(winner.MissingRequired()) > 0
}

// copyField moves one named field's value and provenance stamp from src to
// dst. The field names are the provenance keys; anything unknown is left
// alone.
func copyField(dst, src *model.Product, field string) {
	switch field {
	case "name":
		dst.Name = src.Name
	case "slug":
		dst.Slug = src.Slug
	case "description":
		dst.Description = src.Description
	case "source_url":
		dst.SourceURL = src.SourceURL
	case "image_url":
		dst.ImageURL = src.ImageURL
	case "roast_level":
		dst.RoastLevel = src.RoastLevel
	case "bean_type":
		dst.BeanType = src.BeanType
	case "processing_method":
		dst.ProcessingMethod = src.ProcessingMethod
	case "region_name":
		dst.RegionName = src.RegionName
	case "is_single_origin":
		dst.IsSingleOrigin = src.IsSingleOrigin
	case "is_seasonal":
		dst.IsSeasonal = src.IsSeasonal
	case "is_available":
		dst.IsAvailable = src.IsAvailable
	case "is_featured":
		dst.IsFeatured = src.IsFeatured
	case "prices":
		dst.Prices = src.Prices
	case "price_250g":
		dst.Price250g = src.Price250g
	case "tags":
		dst.Tags = src.Tags
	case "flavor_profiles":
		dst.FlavorProfiles = src.FlavorProfiles
	case "brew_methods":
		dst.BrewMethods = src.BrewMethods
	case "acidity":
		dst.Acidity = src.Acidity
	case "body":
		dst.Body = src.Body
	case "sweetness":
		dst.Sweetness = src.Sweetness
	case "aroma":
		dst.Aroma = src.Aroma
	case "with_milk_suitable":
		dst.WithMilkSuitable = src.WithMilkSuitable
	case "varietals":
		dst.Varietals = src.Varietals
	case "altitude_meters":
		dst.AltitudeMeters = src.AltitudeMeters
	default:
		return
	}
	if prov, ok := src.Provenance[field]; ok {
		dst.StampConfidence(field, prov.Source, prov.Confidence)
	}
}
