// Package store persists run history. The pipeline itself needs only the
// output directory; the store is an optional layer behind the runs
// subcommands and the serve mode, with SQLite and Postgres drivers.
package store

import (
	"context"

	"github.com/sells-group/expo-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	SourceURL string          `json:"source_url,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Stats aggregates the run history.
type Stats struct {
	TotalRuns       int `json:"total_runs"`
	Success         int `json:"success"`
	PartialFailure  int `json:"partial_failure"`
	Failed          int `json:"failed"`
	Running         int `json:"running"`
	DistinctSources int `json:"distinct_sources"`
}

func (st *Stats) add(status model.RunStatus, count int) {
	st.TotalRuns += count
	switch status {
	case model.RunStatusSuccess:
		st.Success += count
	case model.RunStatusPartialFailure:
		st.PartialFailure += count
	case model.RunStatusFailed:
		st.Failed += count
	case model.RunStatusRunning:
		st.Running += count
	}
}

// Store defines the run-history persistence interface.
type Store interface {
	CreateRun(ctx context.Context, sourceURL string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// SaveManifest stores the final manifest and moves the run to the
	// manifest's overall status.
	SaveManifest(ctx context.Context, runID string, manifest *model.RunManifest) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	Stats(ctx context.Context) (*Stats, error)

	Migrate(ctx context.Context) error
	Close() error
}
