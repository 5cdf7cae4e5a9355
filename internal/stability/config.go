// Package stability maps product fields to refresh cadences. Each field
// belongs to one of four categories (highly stable through highly variable)
// with a max age per category; a YAML policy file can override both the
// category TTLs and individual field assignments.
package stability

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// Config is the top-level stability policy.
type Config struct {
	Categories CategoryConfig         `yaml:"categories"`
	Fields     map[string]FieldConfig `yaml:"fields"`
}

// CategoryConfig holds the max age, in days, for each stability category.
type CategoryConfig struct {
	HighlyStableDays     int `yaml:"highly_stable_days"`
	ModeratelyStableDays int `yaml:"moderately_stable_days"`
	VariableDays         int `yaml:"variable_days"`
	HighlyVariableDays   int `yaml:"highly_variable_days"`
}

// FieldConfig overrides the policy for a single field. Category reassigns
// the field; MaxAgeDays pins an explicit TTL regardless of category.
type FieldConfig struct {
	Category   string `yaml:"category,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// DefaultConfig returns the built-in policy: yearly for highly stable
// fields, quarterly for moderately stable, monthly for variable, weekly
// for highly variable.
func DefaultConfig() *Config {
	return &Config{
		Categories: CategoryConfig{
			HighlyStableDays:     365,
			ModeratelyStableDays: 90,
			VariableDays:         30,
			HighlyVariableDays:   7,
		},
		Fields: map[string]FieldConfig{},
	}
}

// LoadConfig reads a stability policy from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stability: read config %s", path)
	}

	// The YAML has a top-level "stability" key
	var wrapper struct {
		Stability Config `yaml:"stability"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "stability: parse config")
	}

	cfg := &wrapper.Stability
	def := DefaultConfig()
	// Fill in category TTLs the file leaves unset.
	if cfg.Categories.HighlyStableDays == 0 {
		cfg.Categories.HighlyStableDays = def.Categories.HighlyStableDays
	}
	if cfg.Categories.ModeratelyStableDays == 0 {
		cfg.Categories.ModeratelyStableDays = def.Categories.ModeratelyStableDays
	}
	if cfg.Categories.VariableDays == 0 {
		cfg.Categories.VariableDays = def.Categories.VariableDays
	}
	if cfg.Categories.HighlyVariableDays == 0 {
		cfg.Categories.HighlyVariableDays = def.Categories.HighlyVariableDays
	}
	if cfg.Fields == nil {
		cfg.Fields = map[string]FieldConfig{}
	}
	for field, fc := range cfg.Fields {
		if fc.Category != "" {
			if _, err := parseCategory(fc.Category); err != nil {
				return nil, eris.Wrapf(err, "stability: field %s", field)
			}
		}
	}

	return cfg, nil
}

// MaxAges returns the per-category max age map used by cache staleness
// checks.
func (c *Config) MaxAges() map[model.StabilityCategory]time.Duration {
	day := 24 * time.Hour
	return map[model.StabilityCategory]time.Duration{
		model.HighlyStable:     time.Duration(c.Categories.HighlyStableDays) * day,
		model.ModeratelyStable: time.Duration(c.Categories.ModeratelyStableDays) * day,
		model.Variable:         time.Duration(c.Categories.VariableDays) * day,
		model.HighlyVariable:   time.Duration(c.Categories.HighlyVariableDays) * day,
	}
}

// CategoryOf returns the category for a field, honoring any override.
func (c *Config) CategoryOf(field string) model.StabilityCategory {
	if fc, ok := c.Fields[field]; ok && fc.Category != "" {
		if cat, err := parseCategory(fc.Category); err == nil {
			return cat
		}
	}
	return model.CategoryOf(field)
}

// MaxAgeFor returns the max age for a field: an explicit per-field TTL if
// set, otherwise the TTL of the field's category.
func (c *Config) MaxAgeFor(field string) time.Duration {
	if fc, ok := c.Fields[field]; ok && fc.MaxAgeDays > 0 {
		return time.Duration(fc.MaxAgeDays) * 24 * time.Hour
	}
	return c.MaxAges()[c.CategoryOf(field)]
}

func parseCategory(s string) (model.StabilityCategory, error) {
	for _, cat := range model.AllStabilityCategories() {
		if string(cat) == s {
			return cat, nil
		}
	}
	return "", eris.Errorf("stability: unknown category %q", s)
}
