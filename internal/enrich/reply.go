package enrich

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/beanatlas/coffee-cli/internal/normalize"
)

// parseFields decodes a provider reply into the requested fields, coercing
// categorical values onto the closed vocabularies and splitting flavor
// strings into lists. Unrequested keys and nulls are dropped.
func parseFields(raw string, requested []string) (Fields, error) {
	var reply map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &reply); err != nil {
		return nil, eris.Wrap(err, "enrich: parse provider reply")
	}

	fields := Fields{}
	for _, field := range requested {
		value, ok := reply[field]
		if !ok || value == nil {
			continue
		}
		switch field {
		case FieldRoastLevel:
			if s := stringValue(value); s != "" {
				fields[field] = normalize.StandardizeRoast(s)
			}
		case FieldBeanType:
			if s := stringValue(value); s != "" {
				fields[field] = normalize.StandardizeBean(s)
			}
		case FieldProcessingMethod:
			if s := stringValue(value); s != "" {
				fields[field] = normalize.StandardizeProcess(s)
			}
		case FieldRegionName:
			if s := stringValue(value); s != "" {
				fields[field] = s
			}
		case FieldFlavorProfiles:
			if flavors := flavorList(value); len(flavors) > 0 {
				fields[field] = flavors
			}
		}
	}
	return fields, nil
}

// cleanJSON extracts a JSON object from a reply that may carry markdown
// fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// stringValue trims a JSON string value; non-strings come back empty.
func stringValue(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// flavorList accepts either a JSON array or a comma-separated string and
// standardizes it into a flavor list.
func flavorList(value any) []string {
	var flavors []string
	switch v := value.(type) {
	case string:
		for _, note := range strings.Split(v, ",") {
			flavors = append(flavors, strings.TrimSpace(note))
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				flavors = append(flavors, s)
			}
		}
	}
	return normalize.StandardizeFlavors(flavors)
}
