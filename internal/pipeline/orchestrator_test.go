package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expo-cli/internal/cache"
	"github.com/sells-group/expo-cli/internal/classify"
	"github.com/sells-group/expo-cli/internal/enrich"
	"github.com/sells-group/expo-cli/internal/model"
)

const listingURL = "https://expo.example/exhibitors"

type fakeScraper struct {
	companies []model.Company
	err       error
	calls     int
}

var _ Scraper = (*fakeScraper)(nil)

func (f *fakeScraper) Scrape(_ context.Context, _ string, limit int) ([]model.Company, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.companies
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type fakeEnricher struct {
	failNames map[string]bool
	err       error
	calls     int
	stats     enrich.Stats
}

var _ Enricher = (*fakeEnricher)(nil)

func (f *fakeEnricher) Enrich(_ context.Context, companies []model.ScoredCompany) ([]model.EnrichedCompany, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.EnrichedCompany, len(companies))
	failures := 0
	for i, c := range companies {
		row := model.EnrichedCompany{ScoredCompany: c}
		if f.failNames[c.Name] {
			row.ErrorNote = "search failed: 503"
			failures++
		} else {
			row.EmployeeRange = "11–50"
			row.EmployeeSource = "https://linkedin.com/company/" + strings.ToLower(c.Name)
			row.EmployeeConfidence = 0.8
		}
		out[i] = row
	}
	f.stats = enrich.Stats{
		CompaniesProcessed:  len(companies),
		SerperCalls:         len(companies) * 3,
		EmployeeRangesFound: len(companies) - failures,
		RowFailures:         failures,
	}
	return out, nil
}

func (f *fakeEnricher) Stats() enrich.Stats { return f.stats }

// exhibitors returns one YES, one MAYBE, and one NO company under the
// default keyword set.
func exhibitors() []model.Company {
	return []model.Company{
		{Name: "Acme Graphics", Domain: "acmegraphics.com", Blurb: "Wide format printing for retail.", SourceURL: listingURL},
		{Name: "Brandly", Domain: "brandly.example", Blurb: "Corporate branding studio.", SourceURL: listingURL},
		{Name: "Sunrise Dental", Domain: "sunrisedental.com", Blurb: "Family dental clinic.", SourceURL: listingURL},
	}
}

func newTestOrchestrator(t *testing.T, scraper Scraper, enricher Enricher) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	o := &Orchestrator{
		outputDir:  dir,
		scraper:    scraper,
		classifier: classify.New(classify.DefaultKeywords()),
	}
	if enricher != nil {
		o.newEnricher = func(*cache.Store) Enricher { return enricher }
	}
	return o, dir
}

func TestExecuteFullRun(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{companies: exhibitors()}
	en := &fakeEnricher{}
	o, dir := newTestOrchestrator(t, sc, en)

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.True(t, strings.HasPrefix(m.RunID, "run_"), "run id %q", m.RunID)
	assert.Equal(t, model.RunStatusSuccess, m.OverallStatus)
	require.NotNil(t, m.FinishedAt)
	require.Len(t, m.Steps, 3)

	scrapeRes, ok := m.StepFor(model.StepScrape)
	require.True(t, ok)
	assert.Equal(t, model.StepExecuted, scrapeRes.Status)
	require.NotNil(t, scrapeRes.RowCount)
	assert.Equal(t, 3, *scrapeRes.RowCount)

	classifyRes, ok := m.StepFor(model.StepClassify)
	require.True(t, ok)
	assert.Equal(t, model.StepExecuted, classifyRes.Status)
	assert.Equal(t, 3, classifyRes.Metadata["total"])
	assert.Equal(t, 1, classifyRes.Metadata["yes"])
	assert.Equal(t, 1, classifyRes.Metadata["maybe"])
	assert.Equal(t, 1, classifyRes.Metadata["no"])

	enrichRes, ok := m.StepFor(model.StepEnrich)
	require.True(t, ok)
	assert.Equal(t, model.StepExecuted, enrichRes.Status)
	require.NotNil(t, enrichRes.RowCount)
	assert.Equal(t, 2, *enrichRes.RowCount)
	assert.Equal(t, 6, enrichRes.Metadata["serper_calls"])
	assert.Equal(t, 0, enrichRes.Metadata["row_failures"])

	scraped, err := ReadScrapedCSV(filepath.Join(dir, ScrapedCSV))
	require.NoError(t, err)
	assert.Len(t, scraped, 3)

	filtered, err := ReadClassifiedCSV(filepath.Join(dir, FilteredCSV))
	require.NoError(t, err)
	require.Len(t, filtered, 3)
	assert.Equal(t, model.FitYes, filtered[0].FitBucket)
	assert.Equal(t, "YES", filtered[0].FitYesNo)

	enriched, err := ReadEnrichedCSV(filepath.Join(dir, EnrichedCSV))
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	assert.Equal(t, "Acme Graphics", enriched[0].Name)
	assert.Equal(t, "Brandly", enriched[1].Name)

	disk := readManifestFile(t, filepath.Join(dir, ManifestJSON))
	assert.Equal(t, m.RunID, disk.RunID)
	assert.Equal(t, model.RunStatusSuccess, disk.OverallStatus)
	assert.Len(t, disk.Steps, 3)
}

func TestExecuteResumeIsIdempotent(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{companies: exhibitors()}
	en := &fakeEnricher{}
	o, dir := newTestOrchestrator(t, sc, en)

	_, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.NoError(t, err)

	before := map[string][]byte{}
	for _, name := range []string{ScrapedCSV, FilteredCSV, EnrichedCSV} {
		raw, readErr := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, readErr)
		before[name] = raw
	}

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 1, sc.calls, "resume must not re-scrape")
	assert.Equal(t, 1, en.calls, "resume must not re-enrich")
	assert.Equal(t, model.RunStatusSuccess, m.OverallStatus)

	require.Len(t, m.Steps, 3)
	for _, s := range m.Steps {
		assert.Equal(t, model.StepSkipped, s.Status, "step %s", s.Name)
		assert.Equal(t, ReasonResumeExists, s.Reason, "step %s", s.Name)
		require.NotNil(t, s.RowCount, "step %s", s.Name)
	}
	scrapeRes, _ := m.StepFor(model.StepScrape)
	assert.Equal(t, 3, *scrapeRes.RowCount)
	enrichRes, _ := m.StepFor(model.StepEnrich)
	assert.Equal(t, 2, *enrichRes.RowCount)

	for name, raw := range before {
		after, readErr := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, readErr)
		assert.Equal(t, raw, after, "%s must not be rewritten on resume", name)
	}
}

func TestExecuteScrapeFailureHaltsRun(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{err: eris.New("listing page returned 404")}
	o, dir := newTestOrchestrator(t, sc, &fakeEnricher{})

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape stage")
	require.NotNil(t, m)

	assert.Equal(t, model.RunStatusFailed, m.OverallStatus)
	require.Len(t, m.Steps, 1)
	assert.Equal(t, model.StepFailed, m.Steps[0].Status)
	assert.Contains(t, m.Steps[0].Error, "404")

	_, statErr := os.Stat(filepath.Join(dir, FilteredCSV))
	assert.True(t, os.IsNotExist(statErr))

	disk := readManifestFile(t, filepath.Join(dir, ManifestJSON))
	assert.Equal(t, model.RunStatusFailed, disk.OverallStatus)
	require.NotNil(t, disk.FinishedAt)
}

func TestExecuteSkipScrapeWithoutArtifactFailsClassify(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, &fakeScraper{}, &fakeEnricher{})

	cfg := model.RunConfig{SourceURL: listingURL, SkipSteps: []model.StepName{model.StepScrape}}
	m, err := o.Execute(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify stage")

	assert.Equal(t, model.RunStatusFailed, m.OverallStatus)
	require.Len(t, m.Steps, 2)

	scrapeRes, _ := m.StepFor(model.StepScrape)
	assert.Equal(t, model.StepSkipped, scrapeRes.Status)
	assert.Equal(t, ReasonExplicitSkip, scrapeRes.Reason)
	assert.Nil(t, scrapeRes.RowCount)

	classifyRes, _ := m.StepFor(model.StepClassify)
	assert.Equal(t, model.StepFailed, classifyRes.Status)
	assert.Contains(t, classifyRes.Error, "requires scrape output")
}

func TestExecuteSkipScrapeUsesExistingArtifact(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{companies: exhibitors()}
	en := &fakeEnricher{}
	o, dir := newTestOrchestrator(t, sc, en)
	require.NoError(t, WriteScrapedCSV(filepath.Join(dir, ScrapedCSV), exhibitors()))

	cfg := model.RunConfig{SourceURL: listingURL, SkipSteps: []model.StepName{model.StepScrape}}
	m, err := o.Execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, sc.calls)
	assert.Equal(t, model.RunStatusSuccess, m.OverallStatus)

	scrapeRes, _ := m.StepFor(model.StepScrape)
	assert.Equal(t, model.StepSkipped, scrapeRes.Status)
	require.NotNil(t, scrapeRes.RowCount)
	assert.Equal(t, 3, *scrapeRes.RowCount)

	classifyRes, _ := m.StepFor(model.StepClassify)
	assert.Equal(t, model.StepExecuted, classifyRes.Status)

	enrichRes, _ := m.StepFor(model.StepEnrich)
	assert.Equal(t, model.StepExecuted, enrichRes.Status)
	require.NotNil(t, enrichRes.RowCount)
	assert.Equal(t, 2, *enrichRes.RowCount)
}

func TestExecuteSkipAllSteps(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{companies: exhibitors()}
	o, _ := newTestOrchestrator(t, sc, &fakeEnricher{})

	cfg := model.RunConfig{
		SourceURL: listingURL,
		SkipSteps: []model.StepName{model.StepScrape, model.StepClassify, model.StepEnrich},
	}
	m, err := o.Execute(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, sc.calls)
	assert.Equal(t, model.RunStatusSuccess, m.OverallStatus)

	require.Len(t, m.Steps, 3)
	for _, s := range m.Steps {
		assert.Equal(t, model.StepSkipped, s.Status, "step %s", s.Name)
		assert.Equal(t, ReasonExplicitSkip, s.Reason, "step %s", s.Name)
	}
}

func TestExecuteMissingCredentialsSkipsEnrich(t *testing.T) {
	t.Parallel()

	o, dir := newTestOrchestrator(t, &fakeScraper{companies: exhibitors()}, nil)

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.NoError(t, err, "missing credentials degrade the run, not fail it")

	assert.Equal(t, model.RunStatusPartialFailure, m.OverallStatus)
	enrichRes, ok := m.StepFor(model.StepEnrich)
	require.True(t, ok)
	assert.Equal(t, model.StepSkipped, enrichRes.Status)
	assert.Equal(t, ReasonMissingCredentials, enrichRes.Reason)
	assert.Nil(t, enrichRes.RowCount)

	_, statErr := os.Stat(filepath.Join(dir, EnrichedCSV))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteRowFailuresDowngradeToPartial(t *testing.T) {
	t.Parallel()

	en := &fakeEnricher{failNames: map[string]bool{"Brandly": true}}
	o, dir := newTestOrchestrator(t, &fakeScraper{companies: exhibitors()}, en)

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.NoError(t, err, "row level failures must not fail the run")

	assert.Equal(t, model.RunStatusPartialFailure, m.OverallStatus)
	enrichRes, _ := m.StepFor(model.StepEnrich)
	assert.Equal(t, model.StepExecuted, enrichRes.Status)
	assert.Equal(t, 1, enrichRes.Metadata["row_failures"])

	enriched, err := ReadEnrichedCSV(filepath.Join(dir, EnrichedCSV))
	require.NoError(t, err)
	require.Len(t, enriched, 2)
	assert.Equal(t, "11–50", enriched[0].EmployeeRange)
	assert.Empty(t, enriched[1].EmployeeRange)
	assert.Contains(t, enriched[1].ErrorNote, "search failed")
}

func TestExecuteEnrichErrorFailsRun(t *testing.T) {
	t.Parallel()

	en := &fakeEnricher{err: eris.New("batch aborted")}
	o, _ := newTestOrchestrator(t, &fakeScraper{companies: exhibitors()}, en)

	m, err := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich stage")

	assert.Equal(t, model.RunStatusFailed, m.OverallStatus)
	enrichRes, _ := m.StepFor(model.StepEnrich)
	assert.Equal(t, model.StepFailed, enrichRes.Status)
}

func TestExecuteTestLimitCapsScrape(t *testing.T) {
	t.Parallel()

	sc := &fakeScraper{companies: exhibitors()}
	o, _ := newTestOrchestrator(t, sc, &fakeEnricher{})

	cfg := model.RunConfig{SourceURL: listingURL, Limit: 100, TestLimit: 1}
	m, err := o.Execute(context.Background(), cfg)
	require.NoError(t, err)

	scrapeRes, _ := m.StepFor(model.StepScrape)
	require.NotNil(t, scrapeRes.RowCount)
	assert.Equal(t, 1, *scrapeRes.RowCount)

	classifyRes, _ := m.StepFor(model.StepClassify)
	assert.Equal(t, 1, classifyRes.Metadata["total"])
}

func TestExecuteLockPreventsConcurrentRuns(t *testing.T) {
	t.Parallel()

	o, dir := newTestOrchestrator(t, &fakeScraper{companies: exhibitors()}, &fakeEnricher{})

	held := flock.New(filepath.Join(dir, ".run.lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, execErr := o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.Error(t, execErr)
	assert.Contains(t, execErr.Error(), "lock")

	require.NoError(t, held.Unlock())

	_, execErr = o.Execute(context.Background(), model.RunConfig{SourceURL: listingURL})
	require.NoError(t, execErr)
}
