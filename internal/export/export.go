// Package export renders accepted product sets into delivery artifacts:
// CSV and JSON for spreadsheet and directory tooling, XLSX workbooks for
// partner hand-off. Artifacts can optionally be shipped to an FTP endpoint
// after writing.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// Format selects the artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user-supplied format name onto a known Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q (want csv, json, or xlsx)", s)
}

// Ext returns the artifact file extension for the format.
func (f Format) Ext() string { return "." + string(f) }

// header is the flat product schema shared by the CSV and XLSX writers.
// List-valued fields are joined with "; ", prices as size=amount pairs.
var header = []string{
	"roaster_id", "name", "slug", "roast_level", "bean_type",
	"processing_method", "region_name", "is_single_origin", "is_seasonal",
	"is_available", "is_featured", "price_250g", "prices",
	"flavor_profiles", "brew_methods", "tags", "varietals",
	"altitude_meters", "acidity", "body", "sweetness", "aroma",
	"with_milk_suitable", "description", "image_url", "source_url",
	"normalized_url", "scraped_at",
}

// Write renders products in the given format.
func Write(w io.Writer, format Format, products []*model.Product) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, products)
	case FormatJSON:
		return WriteJSON(w, products)
	case FormatXLSX:
		return WriteXLSX(w, products)
	}
	return eris.Errorf("export: unknown format %q", format)
}

// WriteCSV writes the product set as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, products []*model.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, p := range products {
		if err := cw.Write(row(p)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", p.NormalizedURL)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes the product set as indented JSON. An empty set is an
// empty array, never null.
func WriteJSON(w io.Writer, products []*model.Product) error {
	if products == nil {
		products = []*model.Product{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

func row(p *model.Product) []string {
	return []string{
		p.RoasterID,
		p.Name,
		p.Slug,
		string(p.RoastLevel),
		string(p.BeanType),
		string(p.ProcessingMethod),
		p.RegionName,
		formatBoolPtr(p.IsSingleOrigin),
		formatBoolPtr(p.IsSeasonal),
		strconv.FormatBool(p.IsAvailable),
		strconv.FormatBool(p.IsFeatured),
		formatAmount(p.Price250g),
		formatPrices(p.Prices),
		joinList(p.FlavorProfiles),
		joinList(p.BrewMethods),
		joinList(p.Tags),
		joinList(p.Varietals),
		formatCount(p.AltitudeMeters),
		p.Acidity,
		p.Body,
		p.Sweetness,
		p.Aroma,
		formatBoolPtr(p.WithMilkSuitable),
		p.Description,
		p.ImageURL,
		p.SourceURL,
		p.NormalizedURL,
		formatTime(p.ScrapedAt),
	}
}

func formatPrices(prices []model.PriceEntry) string {
	if len(prices) == 0 {
		return ""
	}
	pairs := make([]string, len(prices))
	for i, entry := range prices {
		pairs[i] = fmt.Sprintf("%dg=%s", entry.SizeGrams, formatAmount(entry.Price))
	}
	return strings.Join(pairs, "; ")
}

func joinList(values []string) string { return strings.Join(values, "; ") }

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatCount(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// formatBoolPtr renders the tri-state flags: unknown stays blank.
func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
