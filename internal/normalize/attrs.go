package normalize

import (
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
)

type vocabPair[T ~string] struct {
	term  string
	value T
}

// matchVocab runs an exact-match pass and then a substring pass over an
// ordered synonym table. Tables list specific terms before generic ones
// so "light-medium roast" never collapses to plain "light".
func matchVocab[T ~string](text string, pairs []vocabPair[T], unknown T) T {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return unknown
	}
	for _, p := range pairs {
		if p.term == text {
			return p.value
		}
	}
	for _, p := range pairs {
		if strings.Contains(text, p.term) {
			return p.value
		}
	}
	return unknown
}

var roastSynonyms = []vocabPair[model.RoastLevel]{
	{"light-medium", model.RoastLightMedium},
	{"light medium", model.RoastLightMedium},
	{"medium-dark", model.RoastMediumDark},
	{"medium dark", model.RoastMediumDark},
	{"full city+", model.RoastMediumDark},
	{"full-city+", model.RoastMediumDark},
	{"full city", model.RoastFullCity},
	{"city+", model.RoastCityPlus},
	{"city plus", model.RoastCityPlus},
	{"half city", model.RoastLight},
	{"city", model.RoastLightMedium},
	{"omniroast", model.RoastOmni},
	{"omni roast", model.RoastOmni},
	{"omni", model.RoastOmni},
	{"cinnamon", model.RoastCinnamon},
	{"light roast", model.RoastLight},
	{"blonde", model.RoastLight},
	{"new england", model.RoastLight},
	{"light", model.RoastLight},
	{"medium roast", model.RoastMedium},
	{"american", model.RoastMedium},
	{"breakfast", model.RoastMedium},
	{"medium", model.RoastMedium},
	{"vienna", model.RoastMediumDark},
	{"continental", model.RoastMediumDark},
	{"french roast", model.RoastFrench},
	{"french", model.RoastFrench},
	{"italian roast", model.RoastItalian},
	{"italian", model.RoastItalian},
	{"espresso roast", model.RoastEspresso},
	{"espresso", model.RoastEspresso},
	{"high roast", model.RoastDark},
	{"spanish", model.RoastDark},
	{"dark roast", model.RoastDark},
	{"dark", model.RoastDark},
}

// StandardizeRoast maps free-form roast copy onto the closed roast
// vocabulary. "Filter" counts as a roast style only when nothing else
// matches; unrecognized input returns RoastUnknown.
func StandardizeRoast(text string) model.RoastLevel {
	roast := matchVocab(text, roastSynonyms, model.RoastUnknown)
	if roast == model.RoastUnknown && strings.Contains(strings.ToLower(text), "filter") {
		return model.RoastFilter
	}
	return roast
}

// arabicaVarietals are cultivar names that imply the arabica species.
var arabicaVarietals = []string{
	"bourbon", "typica", "gesha", "geisha", "sl-28", "sl28", "sl-34", "sl34",
	"caturra", "catuai", "catimor", "pacamara", "maragogipe", "pacas",
	"villa sarchi", "mundo novo",
}

var beanSynonyms = []vocabPair[model.BeanType]{
	{"arabica-robusta", model.BeanArabicaRobusta},
	{"arabica robusta blend", model.BeanArabicaRobusta},
	{"arabica robusta", model.BeanArabicaRobusta},
	{"arabica/robusta", model.BeanArabicaRobusta},
	{"arabica and robusta", model.BeanArabicaRobusta},
	{"arabica & robusta", model.BeanArabicaRobusta},
	{"80/20 blend", model.BeanArabicaRobusta},
	{"80/20", model.BeanArabicaRobusta},
	{"mixed arabica", model.BeanMixedArabica},
	{"arabica blend", model.BeanMixedArabica},
	{"arabica mix", model.BeanMixedArabica},
	{"100% arabica", model.BeanArabica},
	{"100% robusta", model.BeanRobusta},
	{"100% liberica", model.BeanLiberica},
	{"canephora", model.BeanRobusta},
	{"excelsa", model.BeanLiberica},
	{"house blend", model.BeanBlend},
	{"espresso blend", model.BeanBlend},
	{"signature blend", model.BeanBlend},
	{"coffee blend", model.BeanBlend},
}

// StandardizeBean maps free-form species/varietal copy onto the closed
// bean vocabulary. Arabica varietal names (bourbon, gesha, SL-28, ...)
// resolve to arabica; mixed mentions of arabica and robusta resolve to
// the combined type.
func StandardizeBean(text string) model.BeanType {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return model.BeanUnknown
	}

	if bean := matchVocab(lower, beanSynonyms, model.BeanUnknown); bean != model.BeanUnknown {
		return bean
	}

	hasArabica := strings.Contains(lower, "arabica")
	hasRobusta := strings.Contains(lower, "robusta")
	switch {
	case hasArabica && hasRobusta:
		return model.BeanArabicaRobusta
	case hasArabica && (strings.Contains(lower, "blend") || strings.Contains(lower, "mix")):
		return model.BeanMixedArabica
	}

	for _, v := range arabicaVarietals {
		if strings.Contains(lower, v) {
			return model.BeanArabica
		}
	}

	switch {
	case hasArabica:
		return model.BeanArabica
	case hasRobusta:
		return model.BeanRobusta
	case strings.Contains(lower, "liberica"):
		return model.BeanLiberica
	case strings.Contains(lower, "blend"):
		return model.BeanBlend
	}
	return model.BeanUnknown
}

var processSynonyms = []vocabPair[model.ProcessingMethod]{
	{"carbonic maceration", model.ProcessCarbonic},
	{"carbonic", model.ProcessCarbonic},
	{"double fermented", model.ProcessDoubleFerm},
	{"extended fermentation", model.ProcessDoubleFerm},
	{"pulped natural", model.ProcessPulpedNat},
	{"wet hulled", model.ProcessWetHulled},
	{"wet-hulled", model.ProcessWetHulled},
	{"giling basah", model.ProcessWetHulled},
	{"monsooned malabar", model.ProcessMonsooned},
	{"monsooning", model.ProcessMonsooned},
	{"monsooned", model.ProcessMonsooned},
	{"monsoon", model.ProcessMonsooned},
	{"anaerobic natural", model.ProcessAnaerobic},
	{"anaerobic washed", model.ProcessAnaerobic},
	{"anaerobic fermentation", model.ProcessAnaerobic},
	{"double anaerobic", model.ProcessAnaerobic},
	{"anaerobic", model.ProcessAnaerobic},
	{"black honey", model.ProcessHoney},
	{"red honey", model.ProcessHoney},
	{"yellow honey", model.ProcessHoney},
	{"white honey", model.ProcessHoney},
	{"golden honey", model.ProcessHoney},
	{"semi-washed", model.ProcessHoney},
	{"semi washed", model.ProcessHoney},
	{"honey", model.ProcessHoney},
	{"fully washed", model.ProcessWashed},
	{"traditional washed", model.ProcessWashed},
	{"wet process", model.ProcessWashed},
	{"water process", model.ProcessWashed},
	{"washed", model.ProcessWashed},
	{"sun dried", model.ProcessNatural},
	{"sundried", model.ProcessNatural},
	{"dry process", model.ProcessNatural},
	{"unwashed", model.ProcessNatural},
	{"traditional natural", model.ProcessNatural},
	{"natural", model.ProcessNatural},
}

// StandardizeProcess maps free-form processing copy onto the closed
// processing vocabulary. Experimental processes without a recognized
// family come back unknown; a few contextual fallbacks catch phrasing
// like "double fermentation lot".
func StandardizeProcess(text string) model.ProcessingMethod {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return model.ProcessUnknown
	}
	// "wet"/"dry" alone are too ambiguous for the substring pass; handle
	// the exact forms up front.
	switch lower {
	case "wet":
		return model.ProcessWashed
	case "dry":
		return model.ProcessNatural
	case "experimental", "experimental process":
		return model.ProcessUnknown
	}

	if p := matchVocab(lower, processSynonyms, model.ProcessUnknown); p != model.ProcessUnknown {
		return p
	}

	switch {
	case strings.Contains(lower, "double") && strings.Contains(lower, "ferment"):
		return model.ProcessDoubleFerm
	case strings.Contains(lower, "dry"):
		return model.ProcessNatural
	}
	return model.ProcessUnknown
}

// flavorAliases folds spelling and phrasing variants into one flavor term.
var flavorAliases = map[string]string{
	"chocolatey":      "chocolate",
	"chocolaty":       "chocolate",
	"chocolate notes": "chocolate",
	"cocoa notes":     "cocoa",
	"caramelized":     "caramel",
	"fruity notes":    "fruity",
	"berries":         "berry",
	"citrusy":         "citrus",
	"floral notes":    "floral",
	"spicy":           "spice",
	"woody notes":     "woody",
	"tobacco notes":   "tobacco",
	"honey notes":     "honey",
}

// StandardizeFlavors lowercases, deduplicates, and alias-folds a flavor
// list, preserving first-seen order.
func StandardizeFlavors(flavors []string) []string {
	seen := make(map[string]struct{}, len(flavors))
	out := make([]string, 0, len(flavors))
	for _, f := range flavors {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if alias, ok := flavorAliases[f]; ok {
			f = alias
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
