package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// maxContentChars caps the page text fed into a provider prompt. Product
// pages rarely describe the coffee past the first few thousand characters;
// the rest is reviews and recommendation strips.
const maxContentChars = 8000

// systemText is shared by every provider call. Built once so the Anthropic
// prompt cache sees identical bytes on consecutive candidates.
var systemText = buildSystemText()

func buildSystemText() string {
	var b strings.Builder
	b.WriteString("You are a coffee product analyst extracting details from retail product pages. ")
	b.WriteString("Return a valid JSON object containing only the requested fields. ")
	b.WriteString("Use null for anything the page does not state.\n\n")
	b.WriteString("Closed vocabularies, pick exactly one value or null:\n")
	b.WriteString("roast_level: " + strings.Join(vocabTerms(model.KnownRoastLevels, model.RoastUnknown), ", ") + "\n")
	b.WriteString("bean_type: " + strings.Join(vocabTerms(model.KnownBeanTypes, model.BeanUnknown), ", ") + "\n")
	b.WriteString("processing_method: " + strings.Join(vocabTerms(model.KnownProcessingMethods, model.ProcessUnknown), ", ") + "\n")
	b.WriteString("region_name: free text, the growing region or country\n")
	b.WriteString("flavor_profiles: array of short lowercase tasting notes")
	return b.String()
}

// vocabTerms flattens a closed vocabulary into sorted terms, leaving out
// the unknown member so providers never pick it directly.
func vocabTerms[T ~string](known map[T]bool, unknown T) []string {
	terms := make([]string, 0, len(known))
	for value := range known {
		if value == unknown {
			continue
		}
		terms = append(terms, string(value))
	}
	sort.Strings(terms)
	return terms
}

const promptTemplate = `Extract coffee product details from this page.
Focus on these missing fields: %s.
Only fill fields you are confident about from the page content. Do not guess.

Product: %s
Page URL: %s
Page content:
%s

Return a JSON object with exactly these keys: %s.`

// buildPrompt renders the per-candidate user prompt.
func buildPrompt(candidate model.Candidate, missing []string, text string) string {
	keys := strings.Join(missing, ", ")
	return fmt.Sprintf(promptTemplate,
		keys,
		candidate.Title,
		candidate.URL,
		truncateText(text, maxContentChars),
		keys,
	)
}

// truncateText cuts text at a word boundary near max so prompts never end
// mid-token.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexAny(cut, " \n\t"); idx > max/2 {
		cut = cut[:idx]
	}
	return cut
}
