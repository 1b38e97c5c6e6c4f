package notion

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CSVMapper maps a CSV row to a flat key-value map using the header row.
type CSVMapper struct{}

// MapRow pairs each header with the corresponding value in the row.
// If the row has fewer columns than headers, missing values become empty strings.
func (m CSVMapper) MapRow(headers []string, row []string) map[string]string {
	result := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			result[h] = row[i]
		} else {
			result[h] = ""
		}
	}
	return result
}

// PushResult summarizes what a PushCSV call did to the target database.
type PushResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Total returns the number of rows that reached Notion.
func (r PushResult) Total() int {
	return r.Created + r.Updated
}

// PushCSV reads a pipeline CSV (typically the enriched output) and upserts one
// Notion page per unique company. Rows are matched against existing pages by
// their URL property, so re-pushing the same file updates pages instead of
// duplicating them. Rows with no value in the dedup column are skipped, as are
// in-file duplicates. Page writes respect the Client's rate limit.
func PushCSV(ctx context.Context, c Client, dbID string, csvPath string) (PushResult, error) {
	var res PushResult

	f, err := os.Open(csvPath)
	if err != nil {
		return res, eris.Wrapf(err, "notion: open csv %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return res, eris.Wrap(err, "notion: read csv")
	}

	if len(records) < 2 {
		return res, nil // header only or empty
	}

	headers := records[0]
	rows := records[1:]
	urlIdx := dedupColumn(headers)

	// One upfront query beats one lookup per row against Notion's 3 req/s cap.
	var existing map[string]string
	if urlIdx >= 0 {
		existing, err = ExistingCompanyURLs(ctx, c, dbID)
		if err != nil {
			return res, err
		}
	}

	mapper := CSVMapper{}
	seen := make(map[string]struct{})

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "notion: push cancelled")
		}

		mapped := mapper.MapRow(headers, row)

		key := ""
		if urlIdx >= 0 {
			u := ""
			if urlIdx < len(row) {
				u = strings.TrimSpace(row[urlIdx])
			}
			if u == "" {
				res.Skipped++
				continue
			}
			key = urlKey(u)
			if _, dup := seen[key]; dup {
				res.Skipped++
				continue
			}
			seen[key] = struct{}{}
		}

		props := buildCompanyProperties(mapped)

		if pageID, ok := existing[key]; ok && key != "" {
			req := &notionapi.PageUpdateRequest{Properties: props}
			if _, err := c.UpdatePage(ctx, pageID, req); err != nil {
				return res, eris.Wrap(err, "notion: push row")
			}
			res.Updated++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return res, eris.Wrap(err, "notion: push row")
		}
		res.Created++
	}

	return res, nil
}

// dedupColumn returns the index of the first column usable as an identity key,
// or -1 when the CSV has none.
func dedupColumn(headers []string) int {
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "domain", "url", "website":
			return i
		}
	}
	return -1
}

// buildCompanyProperties converts a CSV row map to Notion page properties.
// The company name becomes the title, domains and source URLs become URL
// properties, the fit bucket becomes a select, scores and confidences become
// numbers, and everything else passes through as rich_text under a
// title-cased property name. Empty values are omitted so updates never blank
// out hand-edited fields.
func buildCompanyProperties(row map[string]string) notionapi.Properties {
	props := make(notionapi.Properties)
	for col, val := range row {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch key := strings.ToLower(strings.TrimSpace(col)); {
		case key == "company_name" || key == "name":
			props["Name"] = titleProperty(val)
		case key == "domain" || key == "url" || key == "website":
			props["Website"] = notionapi.URLProperty{
				Type: notionapi.PropertyTypeURL,
				URL:  normalizeURL(val),
			}
		case key == "source_url":
			props["Source URL"] = notionapi.URLProperty{
				Type: notionapi.PropertyTypeURL,
				URL:  val,
			}
		case key == "fit_bucket":
			props["Fit"] = notionapi.SelectProperty{
				Type:   notionapi.PropertyTypeSelect,
				Select: notionapi.Option{Name: val},
			}
		case key == "decision_makers":
			if text := formatDecisionMakers(val); text != "" {
				props["Decision Makers"] = richTextProperty(text)
			}
		case numericColumn(key):
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				props[propertyName(col)] = notionapi.NumberProperty{
					Type:   notionapi.PropertyTypeNumber,
					Number: n,
				}
			} else {
				props[propertyName(col)] = richTextProperty(val)
			}
		default:
			props[propertyName(col)] = richTextProperty(val)
		}
	}
	return props
}

func titleProperty(v string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func richTextProperty(v string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: v}},
		},
	}
}

func numericColumn(key string) bool {
	return key == "score" || strings.HasSuffix(key, "_confidence")
}

var propertyCaser = cases.Title(language.AmericanEnglish)

// propertyName turns a snake_case CSV column into a Notion property name,
// e.g. "employee_range" becomes "Employee Range".
func propertyName(col string) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), "_", " ")
	return strings.ReplaceAll(propertyCaser.String(name), "Url", "URL")
}

// formatDecisionMakers renders the decision_makers JSON column as a readable
// "Name (Title); Name (Title)" line. Values that are not valid JSON pass
// through untouched; an empty array renders as "".
func formatDecisionMakers(raw string) string {
	var dms []struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw), &dms); err != nil {
		return raw
	}
	parts := make([]string, 0, len(dms))
	for _, dm := range dms {
		if dm.Name == "" {
			continue
		}
		if dm.Title != "" {
			parts = append(parts, dm.Name+" ("+dm.Title+")")
		} else {
			parts = append(parts, dm.Name)
		}
	}
	return strings.Join(parts, "; ")
}

// normalizeURL ensures a domain has an https:// scheme prefix.
func normalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		return "https://" + domain
	}
	return domain
}

// urlKey canonicalizes a URL or bare domain for dedup comparisons.
func urlKey(raw string) string {
	return strings.TrimSuffix(strings.ToLower(normalizeURL(raw)), "/")
}
