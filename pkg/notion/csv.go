package notion

import (
	"context"
	"encoding/csv"
	"os"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ImportCSV reads a CSV file and creates one Notion page per unique row in
// dbID. Rows are deduplicated on the URL or Website column; rows with an
// empty link are skipped. When the headers look like a roaster directory
// export the directory schema mapping applies and every imported roaster
// lands in the queue with Status "Queued". Page creation goes through the
// Client and inherits its rate limiting. Returns the number of pages created.
func ImportCSV(ctx context.Context, c Client, dbID string, csvPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, eris.Wrapf(err, "notion: open csv %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, eris.Wrap(err, "notion: read csv")
	}
	if len(records) < 2 {
		return 0, nil // header only, or nothing at all
	}

	headers := records[0]
	linkIdx := linkColumn(headers)
	build := pageProperties
	if isDirectoryExport(headers) {
		build = roasterProperties
	}

	created := 0
	seen := make(map[string]struct{})
	for _, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return created, eris.Wrap(err, "notion: import csv cancelled")
		}

		if linkIdx >= 0 {
			link := ""
			if linkIdx < len(record) {
				link = strings.TrimSpace(record[linkIdx])
			}
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: build(zipRow(headers, record)),
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, "notion: create page from csv row")
		}
		created++
	}

	return created, nil
}

// zipRow pairs headers with record values. Records shorter than the header
// row pad out with empty strings so every column key is present.
func zipRow(headers, record []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, h := range headers {
		var v string
		if i < len(record) {
			v = record[i]
		}
		row[h] = v
	}
	return row
}

// isDirectoryExport reports whether the headers came from a roaster listing
// site export. Those carry a Website column plus at least one location
// column; hand-built sheets use a plain URL column instead.
func isDirectoryExport(headers []string) bool {
	var website, location bool
	for _, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "website":
			website = true
		case "city", "state", "country":
			location = true
		}
	}
	return website && location
}

// linkColumn returns the index of the URL or Website column, or -1 when the
// sheet has neither. Without a link column there is nothing to dedupe on.
func linkColumn(headers []string) int {
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "url", "website":
			return i
		}
	}
	return -1
}

// pageProperties converts a hand-built sheet row to page properties. Name
// becomes the title, URL stays a url property, everything else is rich text.
func pageProperties(row map[string]string) notionapi.Properties {
	props := make(notionapi.Properties, len(row))
	for k, v := range row {
		switch {
		case strings.EqualFold(k, "Name"):
			props[k] = titleProp(v)
		case strings.EqualFold(k, "URL"):
			props[k] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: v}
		default:
			props[k] = textProp(v)
		}
	}
	return props
}

// roasterProperties maps a directory export row onto the roaster queue
// schema. Website becomes the URL property, City and State collapse into a
// single Location, and Status is forced to Queued so the next batch run
// picks the roaster up. Remaining non-empty columns pass through as rich
// text under their original header names.
func roasterProperties(row map[string]string) notionapi.Properties {
	rest := make(map[string]string, len(row))
	for k, v := range row {
		rest[k] = v
	}

	props := make(notionapi.Properties)
	if name, ok := takeField(rest, "Name"); ok {
		// Directory exports quote names that contain commas.
		props["Name"] = titleProp(strings.Trim(name, `"`))
	}
	if site, ok := takeField(rest, "Website"); ok {
		props["URL"] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: normalizeURL(site)}
	}

	city, _ := takeField(rest, "City")
	state, _ := takeField(rest, "State")
	if loc := joinLocation(city, state); loc != "" {
		props["Location"] = textProp(loc)
	}

	props["Status"] = notionapi.StatusProperty{
		Status: notionapi.Status{Name: "Queued"},
	}

	for k, v := range rest {
		if v == "" {
			continue
		}
		props[k] = textProp(v)
	}
	return props
}

// takeField removes the first case-insensitive match for name from row and
// returns its trimmed value. The bool reports whether the column existed,
// so callers can distinguish a missing column from an empty one.
func takeField(row map[string]string, name string) (string, bool) {
	for k, v := range row {
		if strings.EqualFold(k, name) {
			delete(row, k)
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// joinLocation renders "City, State" with either side optional.
func joinLocation(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}

// normalizeURL prefixes bare domains with https://.
func normalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" || strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

func titleProp(text string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: text}},
		},
	}
}

func textProp(text string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: text}},
		},
	}
}
