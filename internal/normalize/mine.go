package normalize

import (
	"regexp"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// Attrs carries the source material attribute mining works over: the
// product name, cleaned description (or page text), tag list, and any
// structured key/value attributes the platform exposed (metafields,
// option names).
type Attrs struct {
	Name       string
	Text       string
	Tags       []string
	Structured map[string]string
}

func (a Attrs) structuredValue(keys ...string) string {
	for _, k := range keys {
		if v, ok := a.Structured[k]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// compileWordRes builds word-boundary matchers for a term list once, at
// package init.
func compileWordRes(terms []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return res
}

var (
	roastTagPatterns = []struct {
		re    *regexp.Regexp
		roast model.RoastLevel
		conf  int
	}{
		{regexp.MustCompile(`\blight[\s-]*medium[\s-]*roast\b`), model.RoastLightMedium, 90},
		{regexp.MustCompile(`\bmedium[\s-]*dark[\s-]*roast\b`), model.RoastMediumDark, 90},
		{regexp.MustCompile(`\blight[\s-]*roast\b`), model.RoastLight, 90},
		{regexp.MustCompile(`\bmedium[\s-]*roast\b`), model.RoastMedium, 90},
		{regexp.MustCompile(`\bdark[\s-]*roast\b`), model.RoastDark, 90},
		{regexp.MustCompile(`\bfrench[\s-]*roast\b`), model.RoastFrench, 90},
		{regexp.MustCompile(`\bomni[\s-]*roast\b`), model.RoastOmni, 85},
		{regexp.MustCompile(`\bcity[\s-]*plus\b|\bcity\+`), model.RoastCityPlus, 85},
		{regexp.MustCompile(`\bfull[\s-]*city\b`), model.RoastFullCity, 85},
		{regexp.MustCompile(`\bcity\b`), model.RoastCity, 80},
		{regexp.MustCompile(`\bfrench\b`), model.RoastFrench, 80},
		{regexp.MustCompile(`\bitalian\b`), model.RoastItalian, 80},
		{regexp.MustCompile(`\bcinnamon\b`), model.RoastCinnamon, 80},
		// espresso and filter double as brew methods, so lower confidence
		{regexp.MustCompile(`\bespresso\b`), model.RoastEspresso, 70},
		{regexp.MustCompile(`\bfilter\b`), model.RoastFilter, 70},
	}

	roastDeclRe = regexp.MustCompile(`roast(?:ed)?\s*(?:level)?(?:\s*(?:is|:))?\s*(light[\s-]*medium|medium[\s-]*light|medium[\s-]*dark|light|medium|dark|city[\s-]*plus|city\+|full[\s-]*city|city|french|italian|espresso|cinnamon|filter|omni[\s-]*roast)`)
	declRoastRe = regexp.MustCompile(`(light[\s-]*medium|medium[\s-]*light|medium[\s-]*dark|light|medium|dark|city[\s-]*plus|city\+|full[\s-]*city|city|french|italian|cinnamon|omni[\s-]*roast)\s+roast(?:ed)?`)
)

// MineRoast extracts a roast level: structured attributes first, then
// tags, then explicit "roast level: X" declarations in the text, then
// bare roast words when the text is clearly talking about roasting.
func MineRoast(a Attrs) (model.RoastLevel, int) {
	if v := a.structuredValue("roast_level", "roast", "roastlevel", "roast-level"); v != "" {
		return StandardizeRoast(v), 95
	}

	for _, tag := range a.Tags {
		lower := strings.ToLower(strings.TrimSpace(tag))
		for _, p := range roastTagPatterns {
			if p.re.MatchString(lower) {
				return p.roast, p.conf
			}
		}
	}

	text := strings.ToLower(a.Text)
	if m := roastDeclRe.FindStringSubmatch(text); m != nil {
		return StandardizeRoast(m[1]), 80
	}
	if m := declRoastRe.FindStringSubmatch(text); m != nil {
		return StandardizeRoast(m[1]), 75
	}

	// Bare roast words only count when roasting is the topic.
	if strings.Contains(text, "roast") || strings.Contains(text, "profile") {
		for _, w := range roastWords {
			if w.re.MatchString(text) {
				return w.roast, w.conf
			}
		}
	}

	return model.RoastUnknown, 0
}

var roastWords = []struct {
	re    *regexp.Regexp
	roast model.RoastLevel
	conf  int
}{
	{regexp.MustCompile(`\blight[\s-]medium\b`), model.RoastLightMedium, 60},
	{regexp.MustCompile(`\bmedium[\s-]dark\b`), model.RoastMediumDark, 60},
	{regexp.MustCompile(`\blight\b`), model.RoastLight, 60},
	{regexp.MustCompile(`\bmedium\b`), model.RoastMedium, 55},
	{regexp.MustCompile(`\bdark\b`), model.RoastDark, 55},
}

// MineBean extracts a bean type from structured attributes, tags, and
// text, in that order of trust.
func MineBean(a Attrs) (model.BeanType, int) {
	if v := a.structuredValue("bean_type", "beantype", "variety", "varietal"); v != "" {
		return StandardizeBean(v), 95
	}

	for _, tag := range a.Tags {
		if bean := StandardizeBean(tag); bean != model.BeanUnknown {
			return bean, 90
		}
	}

	if bean := StandardizeBean(a.Name); bean != model.BeanUnknown {
		return bean, 80
	}
	if bean := StandardizeBean(a.Text); bean != model.BeanUnknown {
		return bean, 70
	}
	return model.BeanUnknown, 0
}

var processDeclRe = regexp.MustCompile(`process(?:ing)?(?:\s*method)?(?:\s*(?:is|:))?\s*([a-z][a-z\s-]{2,30})`)

// MineProcess extracts a processing method from structured attributes,
// tags, explicit "process: X" declarations, and finally loose mentions in
// the text.
func MineProcess(a Attrs) (model.ProcessingMethod, int) {
	if v := a.structuredValue("processing_method", "processing", "process", "processingmethod"); v != "" {
		return StandardizeProcess(v), 95
	}

	for _, tag := range a.Tags {
		if p := StandardizeProcess(tag); p != model.ProcessUnknown {
			return p, 90
		}
	}

	text := strings.ToLower(a.Text)
	if m := processDeclRe.FindStringSubmatch(text); m != nil {
		if p := StandardizeProcess(m[1]); p != model.ProcessUnknown {
			return p, 80
		}
	}
	if p := StandardizeProcess(text); p != model.ProcessUnknown {
		return p, 70
	}
	return model.ProcessUnknown, 0
}

// knownFlavors is the recognized flavor descriptor vocabulary.
var knownFlavors = []string{
	"chocolate", "cocoa", "nutty", "almond", "hazelnut", "caramel", "toffee",
	"butterscotch", "fruity", "berry", "blueberry", "strawberry", "cherry",
	"citrus", "lemon", "orange", "lime", "floral", "jasmine", "rose", "spice",
	"cinnamon", "vanilla", "earthy", "woody", "tobacco", "cedar", "honey",
	"maple", "malt", "molasses", "stone fruit", "peach", "apricot", "plum",
	"tropical", "pineapple", "mango", "coconut", "apple", "pear", "wine",
	"blackcurrant", "melon", "herbal",
}

var (
	knownFlavorRes = compileWordRes(knownFlavors)

	flavorSectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:notes|flavors|flavours|aromas|tasting\s*profile)\s+of\s+([\w\s,&+]+)`),
		regexp.MustCompile(`(?is)(?:flavour|flavor)\s+notes:\s*(.*?)(?:\.|$)`),
		regexp.MustCompile(`(?is)taste\s+notes\s*[-:]\s*(.*?)(?:\.|$)`),
	}
)

// MineFlavors extracts flavor descriptors: a structured tasting-notes
// attribute first, then tags, then "notes of X" phrasing and labeled
// flavor sections, then bare descriptor words anywhere in the text.
func MineFlavors(a Attrs) ([]string, int) {
	if v := a.structuredValue("flavor_profiles", "flavor_notes", "tasting_notes", "flavors"); v != "" {
		if found := flavorsIn(v); len(found) > 0 {
			return found, 95
		}
	}

	var tagFlavors []string
	for _, tag := range a.Tags {
		tagFlavors = append(tagFlavors, flavorsIn(tag)...)
	}
	if len(tagFlavors) > 0 {
		return StandardizeFlavors(tagFlavors), 90
	}

	for i, re := range flavorSectionRes {
		if m := re.FindStringSubmatch(a.Text); m != nil {
			if found := flavorsIn(m[1]); len(found) > 0 {
				if i == 0 {
					return found, 85
				}
				return found, 80
			}
		}
	}

	if found := flavorsIn(a.Text); len(found) > 0 {
		return found, 70
	}
	return nil, 0
}

func flavorsIn(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for i, re := range knownFlavorRes {
		if re.MatchString(lower) {
			found = append(found, knownFlavors[i])
		}
	}
	return StandardizeFlavors(found)
}

// knownBrewMethods is the recognized brew method vocabulary.
var knownBrewMethods = []string{
	"espresso", "pour over", "pourover", "french press", "aeropress",
	"cold brew", "moka pot", "siphon", "chemex", "drip", "v60", "kalita",
	"clever dripper", "immersion", "percolator", "turkish",
	"south indian filter", "filter",
}

var (
	knownBrewMethodRes = compileWordRes(knownBrewMethods)

	brewRecommendRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:perfect|ideal|great|excellent|recommended)\s+for\s+([a-z0-9,\s&+]+)`),
		regexp.MustCompile(`(?i)best\s+(?:when\s+)?(?:brewed|prepared|made)\s+(?:as|with|using)?\s*([a-z0-9,\s&+]+)`),
		regexp.MustCompile(`(?i)(?:recommended|suggested)\s+(?:brewing\s+)?method:?\s+([a-z0-9,\s&+:]+)`),
	}
)

// MineBrewMethods extracts recommended brew methods, preferring explicit
// recommendations ("perfect for pour over and aeropress") over bare
// mentions anywhere in the text.
func MineBrewMethods(text string) []string {
	var found []string
	seen := map[string]struct{}{}
	add := func(m string) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			found = append(found, m)
		}
	}

	for _, re := range brewRecommendRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		segment := strings.ToLower(m[1])
		for _, sep := range []string{" and ", " & ", " + ", ":"} {
			segment = strings.ReplaceAll(segment, sep, ",")
		}
		for _, part := range strings.Split(segment, ",") {
			part = strings.TrimSpace(part)
			for _, method := range knownBrewMethods {
				if part == method || strings.Contains(part, method) {
					add(method)
					break
				}
			}
		}
	}
	if len(found) > 0 {
		return found
	}

	lower := strings.ToLower(text)
	for i, re := range knownBrewMethodRes {
		if re.MatchString(lower) {
			add(knownBrewMethods[i])
		}
	}
	return found
}

// knownOrigins are country and region names that imply a single-origin
// coffee when present in a product name.
var knownOrigins = []string{
	"ethiopia", "colombia", "colombian", "kenya", "sumatra", "guatemala",
	"brazil", "costa rica", "honduras", "rwanda", "burundi", "el salvador",
	"nicaragua", "panama", "indonesia", "india", "vietnam", "mexico", "peru",
	"jamaica", "hawaii", "kona", "yemen", "estate", "farm",
}

var (
	knownOriginRes = compileWordRes(knownOrigins)
	singleOriginRe = regexp.MustCompile(`\bsingle[\s-]*origin\b`)
	blendMixRe     = regexp.MustCompile(`\b(blend|mix)\b`)
)

// MineSingleOrigin decides whether a product is single origin or a blend.
// Explicit "single origin" wording wins, then tags, then origin names in
// the product name, then blend keywords. With no signal either way it
// leans single origin at low confidence.
func MineSingleOrigin(a Attrs) (bool, int) {
	name := strings.ToLower(a.Name)
	text := strings.ToLower(a.Text)

	if singleOriginRe.MatchString(name) || singleOriginRe.MatchString(text) {
		return true, 95
	}

	for _, tag := range a.Tags {
		lower := strings.ToLower(tag)
		if singleOriginRe.MatchString(lower) {
			return true, 90
		}
		if strings.Contains(lower, "blend") {
			return false, 90
		}
	}

	for _, re := range knownOriginRes {
		if re.MatchString(name) {
			return true, 85
		}
	}

	if blendMixRe.MatchString(name) {
		return false, 85
	}

	if strings.Contains(text, "single farm") || strings.Contains(text, "one farm") {
		return true, 80
	}
	originContext := strings.Contains(text, "from") || strings.Contains(text, "origin") || strings.Contains(text, "region")
	if originContext {
		for _, re := range knownOriginRes {
			if re.MatchString(text) {
				return true, 75
			}
		}
	}

	if !blendMixRe.MatchString(text) {
		return true, 60
	}
	return false, 0
}

var seasonalRes = []*regexp.Regexp{
	regexp.MustCompile(`\bseasonal\b`),
	regexp.MustCompile(`\blimited\s+(?:time|edition|release|availability)\b`),
	regexp.MustCompile(`\bavailable\s+(?:only|just)\s+for\b`),
	regexp.MustCompile(`\bspecial\s+harvest\b`),
	regexp.MustCompile(`\bwhile\s+supplies\s+last\b`),
}

var (
	seasonWords   = []string{"summer", "winter", "spring", "autumn", "fall", "holiday", "christmas", "festival"}
	seasonWordRes = compileWordRes(seasonWords)
)

// MineSeasonal detects limited or seasonal releases from tags, the name,
// and seasonal language in the description.
func MineSeasonal(a Attrs) (bool, int) {
	for _, tag := range a.Tags {
		lower := strings.ToLower(tag)
		if strings.Contains(lower, "seasonal") || strings.Contains(lower, "limited") {
			return true, 90
		}
	}

	name := strings.ToLower(a.Name)
	if strings.Contains(name, "seasonal") || strings.Contains(name, "limited") {
		return true, 85
	}

	text := strings.ToLower(a.Text)
	for _, re := range seasonalRes {
		if re.MatchString(text) {
			return true, 80
		}
	}

	for _, re := range seasonWordRes {
		if re.MatchString(name) {
			return true, 80
		}
		if re.MatchString(text) {
			return true, 70
		}
	}
	return false, 0
}

// MineRegion pulls an origin region from the product name or, with a
// "from ..." context check, the description. The generic estate/farm
// indicators are skipped since they name a site type, not a region.
func MineRegion(a Attrs) (string, int) {
	name := strings.ToLower(a.Name)
	for i, re := range knownOriginRes {
		if origin := knownOrigins[i]; origin == "estate" || origin == "farm" {
			continue
		}
		if re.MatchString(name) {
			return titleCase(knownOrigins[i]), 85
		}
	}

	text := strings.ToLower(a.Text)
	if strings.Contains(text, "from") || strings.Contains(text, "origin") || strings.Contains(text, "region") {
		for i, re := range knownOriginRes {
			if origin := knownOrigins[i]; origin == "estate" || origin == "farm" {
				continue
			}
			if re.MatchString(text) {
				return titleCase(knownOrigins[i]), 75
			}
		}
	}
	return "", 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
