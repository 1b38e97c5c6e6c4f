package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepName(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"scrape", "classify", "enrich"} {
		step, ok := ParseStepName(valid)
		assert.True(t, ok)
		assert.Equal(t, StepName(valid), step)
	}

	_, ok := ParseStepName("deploy")
	assert.False(t, ok)
}

func TestStepsOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []StepName{StepScrape, StepClassify, StepEnrich}, Steps)
}

func TestEffectiveLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RunConfig
		want int
	}{
		{"no limits", RunConfig{}, 0},
		{"limit only", RunConfig{Limit: 100}, 100},
		{"test limit overrides", RunConfig{Limit: 100, TestLimit: 5}, 5},
		{"test limit alone", RunConfig{TestLimit: 10}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.EffectiveLimit())
		})
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	cfg := RunConfig{SkipSteps: []StepName{StepScrape, StepEnrich}}
	assert.True(t, cfg.ShouldSkip(StepScrape))
	assert.False(t, cfg.ShouldSkip(StepClassify))
	assert.True(t, cfg.ShouldSkip(StepEnrich))
}

func TestExecutedResult(t *testing.T) {
	t.Parallel()

	res := Executed(StepScrape, 42, 1500*time.Millisecond)
	assert.Equal(t, StepExecuted, res.Status)
	require.NotNil(t, res.RowCount)
	assert.Equal(t, 42, *res.RowCount)
	require.NotNil(t, res.DurationSeconds)
	assert.InDelta(t, 1.5, *res.DurationSeconds, 0.001)
	assert.Empty(t, res.Reason)
}

func TestSkippedResult(t *testing.T) {
	t.Parallel()

	res := Skipped(StepClassify, "explicitly skipped", 17)
	assert.Equal(t, StepSkipped, res.Status)
	assert.Equal(t, "explicitly skipped", res.Reason)
	require.NotNil(t, res.RowCount)
	assert.Equal(t, 17, *res.RowCount)
	require.NotNil(t, res.DurationSeconds)
	assert.Zero(t, *res.DurationSeconds)
}

func TestSkippedResult_NoArtifact(t *testing.T) {
	t.Parallel()

	res := Skipped(StepEnrich, "missing credentials", -1)
	assert.Equal(t, StepSkipped, res.Status)
	assert.Nil(t, res.RowCount)
	assert.Nil(t, res.DurationSeconds)
}

func TestFailedStepResult(t *testing.T) {
	t.Parallel()

	res := FailedStep(StepScrape, assert.AnError)
	assert.Equal(t, StepFailed, res.Status)
	assert.Equal(t, assert.AnError.Error(), res.Error)
	assert.Nil(t, res.RowCount)
}

func TestManifestStepFor(t *testing.T) {
	t.Parallel()

	m := RunManifest{
		Steps: []StepResult{
			Executed(StepScrape, 10, time.Second),
			Skipped(StepClassify, "explicitly skipped", -1),
		},
	}

	res, ok := m.StepFor(StepClassify)
	require.True(t, ok)
	assert.Equal(t, StepSkipped, res.Status)

	_, ok = m.StepFor(StepEnrich)
	assert.False(t, ok)
}
