package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/expo-cli/internal/pipeline"
)

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExportWorkbook(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, pipeline.ScrapedCSV, "company_name,domain\nAcme Graphics,acme.com\nBrandly,\n")
	writeArtifact(t, dir, pipeline.FilteredCSV, "company_name,score,fit_bucket\nAcme Graphics,7.5,YES\n")
	writeArtifact(t, dir, pipeline.EnrichedCSV, "company_name,employee_range\nAcme Graphics,51-200\n")

	out := filepath.Join(dir, "report.xlsx")
	n, err := exportWorkbook(dir, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)

	assert.Equal(t, "Scraped", f.Sheets[0].Name)
	assert.Equal(t, "Classified", f.Sheets[1].Name)
	assert.Equal(t, "Enriched", f.Sheets[2].Name)

	scraped := f.Sheets[0]
	require.Len(t, scraped.Rows, 3)
	assert.Equal(t, "company_name", scraped.Rows[0].Cells[0].String())
	assert.Equal(t, "Acme Graphics", scraped.Rows[1].Cells[0].String())
	assert.Equal(t, "acme.com", scraped.Rows[1].Cells[1].String())

	classified := f.Sheets[1]
	score, err := classified.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 7.5, score, 0.001)
}

func TestExportWorkbook_SkipsMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, pipeline.EnrichedCSV, "company_name\nAcme Graphics\n")

	out := filepath.Join(dir, "report.xlsx")
	n, err := exportWorkbook(dir, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Equal(t, "Enriched", f.Sheets[0].Name)
}

func TestExportWorkbook_NoArtifacts(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.xlsx")

	n, err := exportWorkbook(dir, out)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestExportWorkbook_SkipsEmptyCSV(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, pipeline.ScrapedCSV, "")
	writeArtifact(t, dir, pipeline.FilteredCSV, "company_name,score\nAcme,3\n")

	n, err := exportWorkbook(dir, filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
