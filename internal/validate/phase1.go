package validate

import (
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// Phase1Input carries the cheap evidence phase 1 screens: the product or
// page name plus whatever description, tags, and URL came with it.
type Phase1Input struct {
	Name        string
	Description string
	URL         string
	Tags        []string
	// Structured marks input that came from a platform feed rather than a
	// crawled page. Feed items with no keyword signal either way pass;
	// crawled pages must show a positive signal.
	Structured bool
}

// Phase1FromCandidate screens a discovered page by its parsed title.
func Phase1FromCandidate(c model.Candidate) Phase1Input {
	return Phase1Input{Name: c.Title, Description: c.Description, URL: c.URL}
}

// Phase1FromProduct screens a record extracted from a structured feed.
func Phase1FromProduct(p *model.Product) Phase1Input {
	return Phase1Input{
		Name:        p.Name,
		Description: p.Description,
		URL:         p.SourceURL,
		Tags:        p.Tags,
		Structured:  true,
	}
}

// negativeTerms mark equipment, merchandise, brewing gear, courses, and
// gift products. Matched as whole words against the lowercased name;
// compound terms come first so debug logs name the most specific hit.
var negativeTerms = []string{
	"gift card", "french press", "filter paper",
	"grinder", "machine", "mug", "cup", "dripper", "kettle", "aeropress",
	"chemex", "v60", "carafe", "filter", "espresso", "gift",
	"subscription", "merch", "apparel", "tote", "course", "workshop",
	"equipment", "accessory", "brewer", "scale", "cleaner", "chocolate",
	"maker", "spoon", "paper", "bag", "class", "event", "training",
	"academy", "barista", "masterclass", "bootcamp", "tool", "reusable",
}

// contextExceptions excuse gear words that double as coffee descriptors
// when the next word makes the coffee reading explicit: "filter coffee"
// and "espresso blend" are the coffee, "coffee filter" is the gear.
var contextExceptions = map[string]*regexp.Regexp{
	"filter":   regexp.MustCompile(`filter\s+(?:coffee|blend|roast|beans?)`),
	"espresso": regexp.MustCompile(`espresso\s+(?:coffee|blend|roast|beans?)`),
}

// positiveTerms are bean and roast vocabulary. Any hit in the name, tags,
// or URL slug accepts the candidate outright.
var positiveTerms = []string{
	"coffee", "arabica", "robusta", "liberica", "single origin", "blend",
	"roast", "peaberry", "estate", "beans", "whole bean", "decaf",
	"specialty", "direct trade", "freshly roasted", "microlot", "turkish",
}

// descriptionIndicators are phrase-level signals safe to trust in longer
// copy, where a lone "coffee" appears on every page of a roaster site.
var descriptionIndicators = []string{
	"medium roast", "light roast", "dark roast", "single origin",
	"whole bean", "arabica", "robusta", "tasting notes", "flavor notes",
	"freshly roasted",
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// Phase1 screens a candidate before any enrichment spend. Rejections carry
// ReasonNegativeKeyword or ReasonNoCoffeeSignal; acceptance carries no
// reasons.
func (v *Validator) Phase1(in Phase1Input) Verdict {
	name := strings.ToLower(strings.TrimSpace(in.Name))
	if name == "" {
		return reject(ReasonNoCoffeeSignal)
	}

	if term, ok := negativeMatch(name); ok {
		zap.L().Debug("validate: negative keyword",
			zap.String("name", in.Name),
			zap.String("term", term),
			zap.String("url", in.URL))
		return reject(ReasonNegativeKeyword)
	}

	if positiveSignal(in, name) {
		return accept()
	}

	// A structured feed already vouches for the item being a product;
	// crawled pages with no signal are not worth enriching.
	if in.Structured {
		return accept()
	}
	zap.L().Debug("validate: no coffee signal",
		zap.String("name", in.Name),
		zap.String("url", in.URL))
	return reject(ReasonNoCoffeeSignal)
}

// negativeMatch returns the first negative term present in the name as a
// whole word, honoring the coffee-context exceptions.
func negativeMatch(name string) (string, bool) {
	padded := wordPad(name)
	for _, term := range negativeTerms {
		if !strings.Contains(padded, " "+term+" ") {
			continue
		}
		if re, ok := contextExceptions[term]; ok && re.MatchString(padded) {
			continue
		}
		return term, true
	}
	return "", false
}

func positiveSignal(in Phase1Input, name string) bool {
	for _, term := range positiveTerms {
		if strings.Contains(name, term) {
			return true
		}
	}
	for _, tag := range in.Tags {
		lower := strings.ToLower(tag)
		for _, term := range positiveTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	if desc := strings.ToLower(in.Description); desc != "" {
		for _, indicator := range descriptionIndicators {
			if strings.Contains(desc, indicator) {
				return true
			}
		}
	}
	if slug := urlWords(in.URL); slug != "" {
		for _, term := range positiveTerms {
			if strings.Contains(slug, term) {
				return true
			}
		}
	}
	return false
}

// wordPad lowercases and flattens punctuation so negative terms match as
// whole words: "Grinder," matches, "cupping" does not match "cup".
func wordPad(name string) string {
	return " " + nonWordRe.ReplaceAllString(strings.ToLower(name), " ") + " "
}

// urlWords returns the URL path with separators flattened to spaces, so
// slug segments match multi-word terms. The host is deliberately excluded:
// most roaster domains contain "coffee", which would pass every page.
func urlWords(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	return strings.ToLower(strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(u.Path))
}
