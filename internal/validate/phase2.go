package validate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// typicalSizes are the common coffee package weights in grams; an entry
// within sizeTolerance of one counts as typical.
var typicalSizes = []int{250, 500, 1000}

const sizeTolerance = 50

// Phase2 applies the full rule set to an assembled product: vocabulary
// coercion, required-field presence, and price plausibility. Out-of-range
// categorical values are coerced to unknown on the product itself, never
// rejected for. The phase-2 verdict is authoritative.
func (v *Validator) Phase2(p *model.Product) Verdict {
	var verdict Verdict
	coerceVocabulary(p)

	for _, field := range p.MissingRequired() {
		verdict.Reasons = append(verdict.Reasons, "missing-"+strings.ReplaceAll(field, "_", "-"))
	}
	verdict.Reasons = append(verdict.Reasons, priceReasons(p, v.maxPriceSpread)...)
	verdict.Warnings = priceWarnings(p)
	verdict.Accepted = len(verdict.Reasons) == 0
	return verdict
}

// coerceVocabulary forces out-of-vocabulary categorical values to unknown.
// The record survives with the field degraded; whether it still stands
// falls to the required-field check.
func coerceVocabulary(p *model.Product) {
	if p.RoastLevel != "" && !model.KnownRoastLevels[p.RoastLevel] {
		zap.L().Debug("validate: coercing roast level",
			zap.String("name", p.Name), zap.String("value", string(p.RoastLevel)))
		p.RoastLevel = model.RoastUnknown
	}
	if p.BeanType != "" && !model.KnownBeanTypes[p.BeanType] {
		zap.L().Debug("validate: coercing bean type",
			zap.String("name", p.Name), zap.String("value", string(p.BeanType)))
		p.BeanType = model.BeanUnknown
	}
	if p.ProcessingMethod != "" && !model.KnownProcessingMethods[p.ProcessingMethod] {
		zap.L().Debug("validate: coercing processing method",
			zap.String("name", p.Name), zap.String("value", string(p.ProcessingMethod)))
		p.ProcessingMethod = model.ProcessUnknown
	}
}

func priceReasons(p *model.Product, maxSpread float64) []string {
	var reasons []string
	for _, entry := range p.Prices {
		if entry.Price <= 0 {
			reasons = append(reasons, ReasonNonPositivePrice)
			break
		}
	}
	if duplicateSizes(p.Prices) {
		reasons = append(reasons, ReasonDuplicateSize)
	}
	if spreadImplausible(p, maxSpread) {
		reasons = append(reasons, ReasonPriceSpread)
	}
	return reasons
}

func priceWarnings(p *model.Product) []string {
	var warnings []string
	if len(p.PriceOrderingViolations()) > 0 {
		warnings = append(warnings, WarnPriceOrdering)
	}
	if atypicalSizes(p.Prices) {
		warnings = append(warnings, WarnAtypicalSize)
	}
	return warnings
}

func duplicateSizes(entries []model.PriceEntry) bool {
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.SizeGrams <= 0 {
			continue
		}
		if seen[e.SizeGrams] {
			return true
		}
		seen[e.SizeGrams] = true
	}
	return false
}

// spreadImplausible reports a price ratio between the smallest and largest
// size beyond the configured bound. Multi-pack listings are exempt: a
// six-pack legitimately costs many times the single bag.
func spreadImplausible(p *model.Product, maxSpread float64) bool {
	if hasTag(p.Tags, "multi-pack") {
		return false
	}
	smallest, largest, ok := sizeExtremes(p.Prices)
	if !ok {
		return false
	}
	lo, hi := smallest.Price, largest.Price
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo <= 0 {
		// Non-positive prices are already rejected on their own.
		return false
	}
	return hi/lo > maxSpread
}

// sizeExtremes returns the entries at the smallest and largest known
// sizes. Entries without a size carry no spread evidence.
func sizeExtremes(entries []model.PriceEntry) (model.PriceEntry, model.PriceEntry, bool) {
	var sized []model.PriceEntry
	for _, e := range entries {
		if e.SizeGrams > 0 {
			sized = append(sized, e)
		}
	}
	if len(sized) < 2 {
		return model.PriceEntry{}, model.PriceEntry{}, false
	}
	sort.Slice(sized, func(i, j int) bool { return sized[i].SizeGrams < sized[j].SizeGrams })
	return sized[0], sized[len(sized)-1], true
}

// atypicalSizes reports whether the product carries sizes, none of which
// is near a typical package weight. Unsized entries are no evidence.
func atypicalSizes(entries []model.PriceEntry) bool {
	sized := false
	for _, e := range entries {
		if e.SizeGrams <= 0 {
			continue
		}
		sized = true
		for _, typical := range typicalSizes {
			if abs(e.SizeGrams-typical) <= sizeTolerance {
				return false
			}
		}
	}
	return sized
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
