package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
)

func TestParseFields_CoercesVocabulary(t *testing.T) {
	raw := `{
		"roast_level": "Medium Roast",
		"bean_type": "100% Arabica",
		"processing_method": "Fully Washed",
		"region_name": " Yirgacheffe, Ethiopia ",
		"flavor_profiles": "Blueberry, Jasmine, chocolate"
	}`

	fields, err := parseFields(raw, EnrichableFields)
	require.NoError(t, err)

	assert.Equal(t, model.RoastMedium, fields[FieldRoastLevel])
	assert.Equal(t, model.BeanArabica, fields[FieldBeanType])
	assert.Equal(t, model.ProcessWashed, fields[FieldProcessingMethod])
	assert.Equal(t, "Yirgacheffe, Ethiopia", fields[FieldRegionName])
	assert.Equal(t, []string{"blueberry", "jasmine", "chocolate"}, fields[FieldFlavorProfiles])
}

func TestParseFields_OutOfVocabularyToUnknown(t *testing.T) {
	raw := `{"bean_type": "martian beans", "processing_method": "laser"}`

	fields, err := parseFields(raw, []string{FieldBeanType, FieldProcessingMethod})
	require.NoError(t, err)

	assert.Equal(t, model.BeanUnknown, fields[FieldBeanType])
	assert.Equal(t, model.ProcessUnknown, fields[FieldProcessingMethod])
}

func TestParseFields_MarkdownFence(t *testing.T) {
	raw := "```json\n{\"roast_level\": \"dark\"}\n```"

	fields, err := parseFields(raw, []string{FieldRoastLevel})
	require.NoError(t, err)
	assert.Equal(t, model.RoastDark, fields[FieldRoastLevel])
}

func TestParseFields_ProseAroundObject(t *testing.T) {
	raw := `Here is what I found: {"region_name": "Huila"} — hope that helps.`

	fields, err := parseFields(raw, []string{FieldRegionName})
	require.NoError(t, err)
	assert.Equal(t, "Huila", fields[FieldRegionName])
}

func TestParseFields_SingleElementArray(t *testing.T) {
	raw := `[{"roast_level": "light"}]`

	fields, err := parseFields(raw, []string{FieldRoastLevel})
	require.NoError(t, err)
	assert.Equal(t, model.RoastLight, fields[FieldRoastLevel])
}

func TestParseFields_SkipsNullsAndUnrequested(t *testing.T) {
	raw := `{"roast_level": null, "bean_type": "arabica", "region_name": "Kenya"}`

	fields, err := parseFields(raw, []string{FieldRoastLevel, FieldBeanType})
	require.NoError(t, err)

	assert.NotContains(t, fields, FieldRoastLevel)
	assert.NotContains(t, fields, FieldRegionName)
	assert.Equal(t, model.BeanArabica, fields[FieldBeanType])
}

func TestParseFields_FlavorVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "comma string with aliases and duplicates",
			raw:  `{"flavor_profiles": "Berries, Cocoa Notes, berries"}`,
			want: []string{"berry", "cocoa"},
		},
		{
			name: "array",
			raw:  `{"flavor_profiles": ["Caramel", "Stone Fruit"]}`,
			want: []string{"caramel", "stone fruit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := parseFields(tt.raw, []string{FieldFlavorProfiles})
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields[FieldFlavorProfiles])
		})
	}
}

func TestParseFields_EmptyFlavorsDropped(t *testing.T) {
	for _, raw := range []string{
		`{"flavor_profiles": []}`,
		`{"flavor_profiles": 42}`,
		`{"flavor_profiles": "  "}`,
	} {
		fields, err := parseFields(raw, []string{FieldFlavorProfiles})
		require.NoError(t, err)
		assert.NotContains(t, fields, FieldFlavorProfiles, raw)
	}
}

func TestParseFields_NonStringCategorical(t *testing.T) {
	raw := `{"roast_level": 3, "region_name": ""}`

	fields, err := parseFields(raw, []string{FieldRoastLevel, FieldRegionName})
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestParseFields_BadJSON(t *testing.T) {
	_, err := parseFields("no braces here", []string{FieldRoastLevel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse provider reply")
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure: {"a":1}.`, `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
