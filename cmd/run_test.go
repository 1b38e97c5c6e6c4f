package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/pipeline"
)

func TestBuildRunConfig(t *testing.T) {
	rc, err := buildRunConfig("https://expo.example.com/exhibitors", 100, 0, []string{"scrape", "enrich"}, true, false)
	require.NoError(t, err)

	assert.Equal(t, "https://expo.example.com/exhibitors", rc.SourceURL)
	assert.Equal(t, 100, rc.Limit)
	assert.True(t, rc.Resume)
	assert.False(t, rc.IncludeMaybe)
	assert.Equal(t, []model.StepName{model.StepScrape, model.StepEnrich}, rc.SkipSteps)
}

func TestBuildRunConfig_TestLimitOverrides(t *testing.T) {
	rc, err := buildRunConfig("https://expo.example.com", 100, 5, nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, 5, rc.EffectiveLimit())
}

func TestBuildRunConfig_UnknownStep(t *testing.T) {
	_, err := buildRunConfig("https://expo.example.com", 0, 0, []string{"transmogrify"}, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown step "transmogrify"`)
}

func summaryManifest() *model.RunManifest {
	scrape := model.Executed(model.StepScrape, 120, 3*time.Second)

	cls := model.Executed(model.StepClassify, 80, time.Second)
	cls.Metadata = map[string]any{"total": 120, "yes": 45, "maybe": 35, "no": 40}

	enr := model.Executed(model.StepEnrich, 45, 30*time.Second)
	enr.Metadata = map[string]any{"serper_calls": 90, "cache_hits": 10, "row_failures": 0}

	return &model.RunManifest{
		RunID:         "run_20240301_120000",
		Config:        model.RunConfig{SourceURL: "https://expo.example.com/exhibitors"},
		Steps:         []model.StepResult{scrape, cls, enr},
		StartedAt:     time.Now(),
		OverallStatus: model.RunStatusSuccess,
	}
}

func TestBuildRunSummary(t *testing.T) {
	s := buildRunSummary("out", summaryManifest(), false, 34*time.Second)

	assert.Equal(t, "run_20240301_120000", s.RunID)
	assert.Equal(t, "https://expo.example.com/exhibitors", s.SourceURL)
	assert.Equal(t, model.RunStatusSuccess, s.OverallStatus)
	assert.InDelta(t, 34.0, s.DurationSeconds, 0.01)
	assert.Equal(t, 120, s.Scraped)
	assert.Equal(t, 120, s.Fit.Total)
	assert.Equal(t, 45, s.Fit.Yes)
	assert.Equal(t, 40, s.Fit.No)
	assert.Nil(t, s.Fit.Maybe)
	assert.Equal(t, 45, s.Enriched)
	assert.Len(t, s.Steps, 3)

	assert.Equal(t, []string{
		filepath.Join("out", pipeline.ScrapedCSV),
		filepath.Join("out", pipeline.FilteredCSV),
		filepath.Join("out", pipeline.EnrichedCSV),
		filepath.Join("out", pipeline.ManifestJSON),
	}, s.Outputs)
}

func TestBuildRunSummary_IncludeMaybe(t *testing.T) {
	s := buildRunSummary("out", summaryManifest(), true, time.Second)

	require.NotNil(t, s.Fit.Maybe)
	assert.Equal(t, 35, *s.Fit.Maybe)
}

func TestBuildRunSummary_ResumedClassify(t *testing.T) {
	// A resumed classify stage reuses the artifact: row count, no metadata.
	m := summaryManifest()
	m.Steps[1] = model.Skipped(model.StepClassify, pipeline.ReasonResumeExists, 80)

	s := buildRunSummary("out", m, false, time.Second)

	assert.Equal(t, 80, s.Fit.Total)
	assert.Equal(t, 0, s.Fit.Yes)
	assert.Equal(t, 0, s.Fit.No)
}

func TestBuildRunSummary_EnrichSkippedWithoutArtifact(t *testing.T) {
	m := summaryManifest()
	m.Steps[2] = model.Skipped(model.StepEnrich, pipeline.ReasonMissingCredentials, -1)
	m.OverallStatus = model.RunStatusPartialFailure

	s := buildRunSummary("out", m, false, time.Second)

	assert.Equal(t, 0, s.Enriched)
	assert.Equal(t, model.RunStatusPartialFailure, s.OverallStatus)
}

func TestMetaCount(t *testing.T) {
	meta := map[string]any{
		"int":    7,
		"int64":  int64(8),
		"float":  9.0,
		"string": "10",
	}

	assert.Equal(t, 7, metaCount(meta, "int"))
	assert.Equal(t, 8, metaCount(meta, "int64"))
	assert.Equal(t, 9, metaCount(meta, "float"))
	assert.Equal(t, 0, metaCount(meta, "string"))
	assert.Equal(t, 0, metaCount(meta, "absent"))
	assert.Equal(t, 0, metaCount(nil, "int"))
}
