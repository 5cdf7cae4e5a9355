package normalize

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
)

var nonPriceRe = regexp.MustCompile(`[^0-9.]`)

// ParsePrice converts a price string to a float, tolerating currency
// symbols, whitespace, and thousands separators. A leading dot left over
// from prefixes like "Rs." is dropped.
func ParsePrice(s string) (float64, bool) {
	cleaned := nonPriceRe.ReplaceAllString(s, "")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FromMinorUnits corrects prices that platforms report in minor currency
// units (paise, cents). A value over 1000 whose last two digits are
// 00, 50, or 99 is treated as minor units and divided by 100; anything
// over 5000 is treated as minor units regardless.
func FromMinorUnits(price float64) float64 {
	if price <= 1000 {
		return price
	}
	switch math.Mod(price, 100) {
	case 0, 50, 99:
		return price / 100
	}
	if price > 5000 {
		return price / 100
	}
	return price
}

// Pack-size price adjustments: larger packs sell at a per-gram discount,
// so deriving a 250g price from a smaller pack discounts the linear
// estimate and deriving it from a larger pack adds a premium.
const (
	bulkDiscount     = 0.95
	smallPackPremium = 1.05
)

// Price250g derives a reference 250g price from a product's price list.
// An exact 250g entry wins; a bracketed target interpolates linearly;
// otherwise the nearest pack is scaled by weight ratio with the pack-size
// adjustment applied. Returns 0 when the list is empty.
func Price250g(prices []model.PriceEntry) float64 {
	return PriceAt(prices, 250)
}

// PriceAt generalizes Price250g to any target size in grams.
func PriceAt(prices []model.PriceEntry, targetGrams int) float64 {
	if len(prices) == 0 || targetGrams <= 0 {
		return 0
	}

	sorted := make([]model.PriceEntry, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SizeGrams < sorted[j].SizeGrams })

	for _, p := range sorted {
		if p.SizeGrams == targetGrams {
			return p.Price
		}
	}

	target := float64(targetGrams)

	if smallest := sorted[0]; targetGrams < smallest.SizeGrams {
		return round2(target / float64(smallest.SizeGrams) * smallest.Price * smallPackPremium)
	}
	if largest := sorted[len(sorted)-1]; targetGrams > largest.SizeGrams {
		return round2(target / float64(largest.SizeGrams) * largest.Price * bulkDiscount)
	}

	for i := 0; i < len(sorted)-1; i++ {
		lower, upper := sorted[i], sorted[i+1]
		if lower.SizeGrams <= targetGrams && targetGrams <= upper.SizeGrams {
			ratio := (target - float64(lower.SizeGrams)) / float64(upper.SizeGrams-lower.SizeGrams)
			return round2(lower.Price + ratio*(upper.Price-lower.Price))
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
