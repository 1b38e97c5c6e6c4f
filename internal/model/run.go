package model

import "time"

// StepName identifies one pipeline stage. Execution order is fixed:
// scrape, then classify, then enrich.
type StepName string

const (
	StepScrape   StepName = "scrape"
	StepClassify StepName = "classify"
	StepEnrich   StepName = "enrich"
)

// Steps lists all stages in execution order.
var Steps = []StepName{StepScrape, StepClassify, StepEnrich}

// ParseStepName validates a user-supplied step name.
func ParseStepName(s string) (StepName, bool) {
	switch StepName(s) {
	case StepScrape, StepClassify, StepEnrich:
		return StepName(s), true
	}
	return "", false
}

// StepStatus is the outcome tag for one stage.
type StepStatus string

const (
	StepExecuted StepStatus = "executed"
	StepSkipped  StepStatus = "skipped"
	StepFailed   StepStatus = "failed"
)

// StepResult records the outcome of one stage. Appended to the manifest at
// most once per stage and never mutated afterwards.
type StepResult struct {
	Name            StepName       `json:"name"`
	Status          StepStatus     `json:"status"`
	RowCount        *int           `json:"row_count,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Executed builds a StepResult for a stage that ran and produced rows.
func Executed(name StepName, rowCount int, duration time.Duration) StepResult {
	secs := duration.Seconds()
	return StepResult{
		Name:            name,
		Status:          StepExecuted,
		RowCount:        &rowCount,
		DurationSeconds: &secs,
	}
}

// Skipped builds a StepResult for a stage that was not run. rowCount is the
// size of the existing artifact when one could be read, else negative.
func Skipped(name StepName, reason string, rowCount int) StepResult {
	res := StepResult{
		Name:   name,
		Status: StepSkipped,
		Reason: reason,
	}
	if rowCount >= 0 {
		zero := 0.0
		res.RowCount = &rowCount
		res.DurationSeconds = &zero
	}
	return res
}

// FailedStep builds a StepResult for a stage that could not produce output.
func FailedStep(name StepName, err error) StepResult {
	res := StepResult{
		Name:   name,
		Status: StepFailed,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning        RunStatus = "running"
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialFailure RunStatus = "partial_failure"
	RunStatusFailed         RunStatus = "failed"
)

// RunConfig is the immutable configuration snapshot for a single run.
type RunConfig struct {
	SourceURL    string     `json:"source_url"`
	Limit        int        `json:"limit,omitempty"`
	TestLimit    int        `json:"test_limit,omitempty"`
	Resume       bool       `json:"resume"`
	SkipSteps    []StepName `json:"skip_steps,omitempty"`
	IncludeMaybe bool       `json:"include_maybe"`
}

// EffectiveLimit returns the row cap for the run. A test limit overrides
// the regular limit; zero means no cap beyond the scraper default.
func (c RunConfig) EffectiveLimit() int {
	if c.TestLimit > 0 {
		return c.TestLimit
	}
	return c.Limit
}

// ShouldSkip reports whether the step was explicitly skipped.
func (c RunConfig) ShouldSkip(step StepName) bool {
	for _, s := range c.SkipSteps {
		if s == step {
			return true
		}
	}
	return false
}

// RunManifest is the persisted record of one pipeline run.
type RunManifest struct {
	RunID         string       `json:"run_id"`
	Config        RunConfig    `json:"config"`
	Steps         []StepResult `json:"steps"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	OverallStatus RunStatus    `json:"overall_status"`
}

// StepFor returns the recorded result for a step, if any.
func (m *RunManifest) StepFor(name StepName) (StepResult, bool) {
	for _, s := range m.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Run is a run-history record for the optional store.
type Run struct {
	ID        string       `json:"id"`
	SourceURL string       `json:"source_url"`
	Status    RunStatus    `json:"status"`
	Manifest  *RunManifest `json:"manifest,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
