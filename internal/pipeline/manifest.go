package pipeline

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/model"
)

// ManifestTracker accumulates step results for one run and checkpoints the
// manifest to disk after every change, so a crashed run still leaves a
// parseable record of everything that completed.
type ManifestTracker struct {
	mu   sync.Mutex
	path string
	m    *model.RunManifest
}

// NewManifestTracker starts a manifest for a new run and writes the initial
// checkpoint.
func NewManifestTracker(path, runID string, cfg model.RunConfig) *ManifestTracker {
	t := &ManifestTracker{
		path: path,
		m: &model.RunManifest{
			RunID:         runID,
			Config:        cfg,
			Steps:         []model.StepResult{},
			StartedAt:     time.Now().UTC(),
			OverallStatus: model.RunStatusRunning,
		},
	}
	if err := t.checkpoint(); err != nil {
		zap.L().Warn("pipeline: initial manifest checkpoint failed", zap.Error(err))
	}
	return t
}

// Record appends a step result and checkpoints. A second result for the same
// step is ignored; each stage reports exactly once per run.
func (t *ManifestTracker) Record(res model.StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.m.StepFor(res.Name); ok {
		zap.L().Warn("pipeline: duplicate step result ignored", zap.String("step", string(res.Name)))
		return
	}
	t.m.Steps = append(t.m.Steps, res)

	if err := t.checkpoint(); err != nil {
		zap.L().Warn("pipeline: manifest checkpoint failed", zap.Error(err))
	}
}

// Finalize derives the overall run status from the recorded steps, stamps the
// finish time, and writes the final manifest.
func (t *ManifestTracker) Finalize() (*model.RunManifest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.m.OverallStatus = overallStatus(t.m.Steps)
	now := time.Now().UTC()
	t.m.FinishedAt = &now

	if err := t.checkpoint(); err != nil {
		return t.m, eris.Wrap(err, "pipeline: write final manifest")
	}
	return t.m, nil
}

// Manifest returns a snapshot copy of the manifest as recorded so far.
func (t *ManifestTracker) Manifest() model.RunManifest {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := *t.m
	snap.Steps = append([]model.StepResult(nil), t.m.Steps...)
	return snap
}

// checkpoint writes the manifest atomically. Callers hold t.mu.
func (t *ManifestTracker) checkpoint() error {
	return writeAtomic(t.path, func(w io.Writer) error {
		b, err := json.MarshalIndent(t.m, "", "  ")
		if err != nil {
			return eris.Wrap(err, "pipeline: marshal manifest")
		}
		if _, err := w.Write(b); err != nil {
			return eris.Wrap(err, "pipeline: write manifest")
		}
		return nil
	})
}

// overallStatus folds step outcomes into a run status. Any failed stage
// fails the run. A stage skipped for missing credentials or any per-row
// enrichment failures downgrade success to partial_failure.
func overallStatus(steps []model.StepResult) model.RunStatus {
	status := model.RunStatusSuccess
	for _, s := range steps {
		switch s.Status {
		case model.StepFailed:
			return model.RunStatusFailed
		case model.StepSkipped:
			if s.Reason == ReasonMissingCredentials {
				status = model.RunStatusPartialFailure
			}
		case model.StepExecuted:
			if metaInt(s.Metadata, "row_failures") > 0 {
				status = model.RunStatusPartialFailure
			}
		}
	}
	return status
}

// metaInt reads an integer out of step metadata, tolerating the float64
// values JSON decoding produces.
func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
