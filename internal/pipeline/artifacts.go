package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expo-cli/internal/model"
)

// Artifact file names inside the output directory. Each stage writes
// exactly one of these; downstream stages and resume mode read them back.
const (
	ScrapedCSV   = "scraped_companies.csv"
	FilteredCSV  = "industry_filtered.csv"
	EnrichedCSV  = "enriched_yes_companies.csv"
	ManifestJSON = "run_manifest.json"
	CacheJSON    = "cache_serper.json"
)

var scrapedColumns = []string{
	"company_name",
	"domain",
	"company_blurb",
	"source_url",
}

var filteredColumns = []string{
	"company_name",
	"domain",
	"company_blurb",
	"source_url",
	"industry_guess",
	"fit_bucket",
	"score",
	"evidence_snippet",
	"fit_yes_no",
}

var enrichedColumns = []string{
	"company_name",
	"domain",
	"company_blurb",
	"source_url",
	"fit_bucket",
	"industry_guess",
	"score",
	"evidence_snippet",
	"employee_range",
	"employee_source",
	"employee_confidence",
	"revenue_range",
	"revenue_source",
	"revenue_confidence",
	"decision_makers",
	"decision_makers_source",
	"decision_makers_confidence",
	"error_note",
}

// writeAtomic writes a file via a temp sibling and rename so readers never
// observe a partially written artifact.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".expo-*.tmp")
	if err != nil {
		return eris.Wrap(err, "artifact: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := write(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "artifact: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "artifact: rename into place")
	}

	return nil
}

// artifactExists reports whether a non-empty artifact is present at path.
func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func writeCSV(path string, columns []string, rows [][]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return eris.Wrap(err, "artifact: write header")
		}
		for _, row := range rows {
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "artifact: write row")
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return eris.Wrap(err, "artifact: flush csv")
		}
		return nil
	})
}

// readCSV reads a headered CSV and invokes row with a by-column getter for
// each data row. Columns absent from the header read as empty strings.
func readCSV(path string, row func(get func(col string) string)) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "artifact: open %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "artifact: read %s header", filepath.Base(path))
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return eris.Wrapf(err, "artifact: read %s row", filepath.Base(path))
		}
		row(func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		})
	}

	return nil
}

// WriteScrapedCSV writes the scrape stage artifact.
func WriteScrapedCSV(path string, companies []model.Company) error {
	rows := make([][]string, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, []string{c.Name, c.Domain, c.Blurb, c.SourceURL})
	}
	return writeCSV(path, scrapedColumns, rows)
}

// ReadScrapedCSV reads back a scrape artifact.
func ReadScrapedCSV(path string) ([]model.Company, error) {
	companies := []model.Company{}
	err := readCSV(path, func(get func(string) string) {
		companies = append(companies, model.Company{
			Name:      get("company_name"),
			Domain:    get("domain"),
			Blurb:     get("company_blurb"),
			SourceURL: get("source_url"),
		})
	})
	if err != nil {
		return nil, err
	}
	return companies, nil
}

// WriteClassifiedCSV writes the classify stage artifact.
func WriteClassifiedCSV(path string, rows []model.ScoredCompany) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Name,
			r.Domain,
			r.Blurb,
			r.SourceURL,
			r.IndustryGuess,
			string(r.FitBucket),
			strconv.Itoa(r.Score),
			r.EvidenceSnippet,
			r.FitYesNo,
		})
	}
	return writeCSV(path, filteredColumns, out)
}

// ReadClassifiedCSV reads back a classify artifact.
func ReadClassifiedCSV(path string) ([]model.ScoredCompany, error) {
	rows := []model.ScoredCompany{}
	err := readCSV(path, func(get func(string) string) {
		score, _ := strconv.Atoi(get("score"))
		rows = append(rows, model.ScoredCompany{
			Company: model.Company{
				Name:      get("company_name"),
				Domain:    get("domain"),
				Blurb:     get("company_blurb"),
				SourceURL: get("source_url"),
			},
			IndustryGuess:   get("industry_guess"),
			FitBucket:       model.FitBucket(get("fit_bucket")),
			Score:           score,
			EvidenceSnippet: get("evidence_snippet"),
			FitYesNo:        get("fit_yes_no"),
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// WriteEnrichedCSV writes the enrich stage artifact.
func WriteEnrichedCSV(path string, rows []model.EnrichedCompany) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Name,
			r.Domain,
			r.Blurb,
			r.SourceURL,
			string(r.FitBucket),
			r.IndustryGuess,
			strconv.Itoa(r.Score),
			r.EvidenceSnippet,
			r.EmployeeRange,
			r.EmployeeSource,
			confString(r.EmployeeConfidence),
			r.RevenueRange,
			r.RevenueSource,
			confString(r.RevenueConfidence),
			decisionMakersJSON(r.DecisionMakers),
			r.DecisionMakersSource,
			confString(r.DecisionMakersConfidence),
			r.ErrorNote,
		})
	}
	return writeCSV(path, enrichedColumns, out)
}

// ReadEnrichedCSV reads back an enrich artifact.
func ReadEnrichedCSV(path string) ([]model.EnrichedCompany, error) {
	rows := []model.EnrichedCompany{}
	err := readCSV(path, func(get func(string) string) {
		score, _ := strconv.Atoi(get("score"))
		rows = append(rows, model.EnrichedCompany{
			ScoredCompany: model.ScoredCompany{
				Company: model.Company{
					Name:      get("company_name"),
					Domain:    get("domain"),
					Blurb:     get("company_blurb"),
					SourceURL: get("source_url"),
				},
				IndustryGuess:   get("industry_guess"),
				FitBucket:       model.FitBucket(get("fit_bucket")),
				Score:           score,
				EvidenceSnippet: get("evidence_snippet"),
			},
			EmployeeRange:            get("employee_range"),
			EmployeeSource:           get("employee_source"),
			EmployeeConfidence:       confFloat(get("employee_confidence")),
			RevenueRange:             get("revenue_range"),
			RevenueSource:            get("revenue_source"),
			RevenueConfidence:        confFloat(get("revenue_confidence")),
			DecisionMakers:           decisionMakersFromJSON(get("decision_makers")),
			DecisionMakersSource:     get("decision_makers_source"),
			DecisionMakersConfidence: confFloat(get("decision_makers_confidence")),
			ErrorNote:                get("error_note"),
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// confString renders a confidence for CSV output. Zero means the field was
// never filled and renders blank.
func confString(conf float64) string {
	if conf <= 0 {
		return ""
	}
	return strconv.FormatFloat(conf, 'f', 2, 64)
}

func confFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func decisionMakersJSON(dms []model.DecisionMaker) string {
	if len(dms) == 0 {
		return "[]"
	}
	b, err := json.Marshal(dms)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decisionMakersFromJSON(s string) []model.DecisionMaker {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}
	var dms []model.DecisionMaker
	if err := json.Unmarshal([]byte(s), &dms); err != nil {
		return nil
	}
	return dms
}
