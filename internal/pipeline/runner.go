package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/model"
)

// Skip reasons recorded on manifest step entries.
const (
	ReasonExplicitSkip       = "explicitly skipped"
	ReasonResumeExists       = "output exists, resume mode"
	ReasonMissingCredentials = "missing credentials"
)

// Codec pairs the read and write halves of a stage artifact so RunStep can
// round-trip any row type.
type Codec[T any] struct {
	Read  func(path string) ([]T, error)
	Write func(path string, rows []T) error
}

// RunStep executes one pipeline stage with skip and resume semantics.
// An explicit skip wins over resume. In resume mode an existing non-empty
// artifact is loaded instead of re-executing; an unreadable artifact falls
// back to execution. The returned rows are nil only when the stage was
// skipped with no readable artifact or when it failed.
func RunStep[T any](
	ctx context.Context,
	cfg model.RunConfig,
	step model.StepName,
	outputPath string,
	codec Codec[T],
	produce func(ctx context.Context) ([]T, error),
) ([]T, model.StepResult, error) {
	log := zap.L().With(zap.String("step", string(step)))

	if cfg.ShouldSkip(step) {
		rows, count := loadExisting(codec, outputPath)
		log.Info("pipeline: step explicitly skipped", zap.Int("rows", count))
		return rows, model.Skipped(step, ReasonExplicitSkip, count), nil
	}

	if cfg.Resume && artifactExists(outputPath) {
		rows, err := codec.Read(outputPath)
		if err == nil {
			log.Info("pipeline: step skipped, artifact exists", zap.Int("rows", len(rows)))
			return rows, model.Skipped(step, ReasonResumeExists, len(rows)), nil
		}
		log.Warn("pipeline: resume artifact unreadable, re-executing", zap.Error(err))
	}

	start := time.Now()
	rows, err := produce(ctx)
	if err != nil {
		return nil, model.FailedStep(step, err), err
	}
	if err := codec.Write(outputPath, rows); err != nil {
		return nil, model.FailedStep(step, err), err
	}

	duration := time.Since(start)
	log.Info("pipeline: step executed",
		zap.Int("rows", len(rows)),
		zap.Duration("duration", duration),
	)
	return rows, model.Executed(step, len(rows), duration), nil
}

// loadExisting best-effort reads an artifact for a skipped step so the
// manifest can still report its row count. A missing or unreadable artifact
// yields nil rows and a negative count.
func loadExisting[T any](codec Codec[T], path string) ([]T, int) {
	if !artifactExists(path) {
		return nil, -1
	}
	rows, err := codec.Read(path)
	if err != nil {
		zap.L().Warn("pipeline: skipped step artifact unreadable", zap.String("path", path), zap.Error(err))
		return nil, -1
	}
	return rows, len(rows)
}
