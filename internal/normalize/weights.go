package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSizeGrams is assumed when a variant carries a price but no
// recognizable pack size.
const DefaultSizeGrams = 250

var (
	unitWeightRe    = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(g|gram|grams|gm|kg)\b`)
	contextWeightRe = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:size|weight|pack)`)
	multiPackRe     = regexp.MustCompile(`(?i)(\d+)\s*x\s*(\d+\.?\d*)\s*(g|gram|gm|kg)`)
)

// namedSizes maps colloquial pack names to grams.
var namedSizes = []struct {
	text  string
	grams int
}{
	{"quarter pound", 113},
	{"half pound", 227},
	{"one pound", 454},
	{"1 pound", 454},
	{"1 lb", 454},
	{"1lb", 454},
	{"half kilo", 500},
	{"one kilo", 1000},
	{"1 kilo", 1000},
	{"1 kg", 1000},
	{"1kg", 1000},
}

// ParseWeight extracts a pack weight in grams from a variant title or
// option value. The confidence (0-100) reflects how explicit the source
// text was: unit-suffixed numbers rank highest, bare size-looking numbers
// lowest. Returns 0 grams when nothing weight-like is present.
func ParseWeight(text string) (grams int, confidence int) {
	if text == "" {
		return 0, 0
	}
	lower := strings.ToLower(text)

	// Explicit unit: "250g", "0.25 kg", "250 grams".
	if m := unitWeightRe.FindStringSubmatch(lower); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if strings.Contains(m[2], "kg") {
				value *= 1000
			}
			return int(value), 90
		}
	}

	// Number next to a size/weight/pack label; plausible only in the
	// usual coffee-pack range.
	if m := contextWeightRe.FindStringSubmatch(lower); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err == nil && value >= 100 && value <= 1000 {
			return int(value), 70
		}
	}

	// Named sizes: "half pound", "1kg".
	for _, s := range namedSizes {
		if strings.Contains(lower, s.text) {
			return s.grams, 80
		}
	}

	// A bare common size, e.g. an option value that is just "250".
	switch strings.TrimSpace(lower) {
	case "250", "500", "1000":
		g, _ := strconv.Atoi(strings.TrimSpace(lower))
		return g, 60
	}

	return 0, 0
}

// ParseMultiPack recognizes bundle variants like "2 x 250g" and returns
// the pack count and per-pack weight in grams.
func ParseMultiPack(text string) (count, grams int, ok bool) {
	m := multiPackRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, 0, false
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count < 1 {
		return 0, 0, false
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	if strings.Contains(m[3], "kg") {
		value *= 1000
	}
	return count, int(value), true
}
