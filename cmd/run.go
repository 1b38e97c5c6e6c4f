package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/config"
	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/pipeline"
)

var (
	runSourceURL    string
	runLimit        int
	runTestLimit    int
	runSkipSteps    []string
	runResume       bool
	runIncludeMaybe bool
	runOutputDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the scrape, classify, and enrich pipeline for one expo",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runOutputDir != "" {
			cfg.Output.Dir = runOutputDir
		}
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		runCfg, err := buildRunConfig(runSourceURL, runLimit, runTestLimit, runSkipSteps, runResume, runIncludeMaybe)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, err := pipeline.NewOrchestrator(cfg)
		if err != nil {
			return err
		}

		started := time.Now()
		manifest, runErr := executeAndRecord(ctx, cfg, orch, runCfg)
		if manifest == nil {
			return runErr
		}

		summary := buildRunSummary(cfg.Output.Dir, manifest, runCfg.IncludeMaybe, time.Since(started))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "encode run summary")
		}

		// Partial failures still produced usable artifacts; only a failed
		// stage exits non-zero.
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runSourceURL, "source-url", "", "expo exhibitor listing URL (required)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max companies to scrape, 0 means no limit")
	runCmd.Flags().IntVar(&runTestLimit, "test-limit", 0, "overrides --limit for small test passes")
	runCmd.Flags().StringArrayVar(&runSkipSteps, "skip-step", nil, "step to skip, repeatable (scrape, classify, enrich)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "reuse existing stage outputs instead of recomputing them")
	runCmd.Flags().BoolVar(&runIncludeMaybe, "include-maybe", false, "break out MAYBE companies in the run summary")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "override the configured output directory")
	_ = runCmd.MarkFlagRequired("source-url")
	rootCmd.AddCommand(runCmd)
}

// buildRunConfig translates CLI flags into a pipeline run config.
func buildRunConfig(sourceURL string, limit, testLimit int, skipSteps []string, resume, includeMaybe bool) (model.RunConfig, error) {
	skip := make([]model.StepName, 0, len(skipSteps))
	for _, s := range skipSteps {
		step, ok := model.ParseStepName(s)
		if !ok {
			return model.RunConfig{}, eris.Errorf("unknown step %q (valid: scrape, classify, enrich)", s)
		}
		skip = append(skip, step)
	}

	return model.RunConfig{
		SourceURL:    sourceURL,
		Limit:        limit,
		TestLimit:    testLimit,
		Resume:       resume,
		SkipSteps:    skip,
		IncludeMaybe: includeMaybe,
	}, nil
}

// executeAndRecord runs the pipeline and mirrors the outcome into the run
// store when one is configured. Store trouble never fails the run; history
// is best effort.
func executeAndRecord(ctx context.Context, cfg *config.Config, orch *pipeline.Orchestrator, runCfg model.RunConfig) (*model.RunManifest, error) {
	if !cfg.Store.Enabled {
		return orch.Execute(ctx, runCfg)
	}

	st, err := initStore(ctx, cfg)
	if err != nil {
		zap.L().Warn("run: open store, continuing without history", zap.Error(err))
		return orch.Execute(ctx, runCfg)
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run: migrate store, continuing without history", zap.Error(err))
		return orch.Execute(ctx, runCfg)
	}

	rec, err := st.CreateRun(ctx, runCfg.SourceURL)
	if err != nil {
		zap.L().Warn("run: create run record", zap.Error(err))
		return orch.Execute(ctx, runCfg)
	}

	manifest, runErr := orch.Execute(ctx, runCfg)

	// The run context may already be cancelled or expired; recording the
	// outcome gets its own short deadline.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if manifest == nil {
		if err := st.UpdateRunStatus(saveCtx, rec.ID, model.RunStatusFailed); err != nil {
			zap.L().Warn("run: mark run failed", zap.Error(err))
		}
		return nil, runErr
	}
	if err := st.SaveManifest(saveCtx, rec.ID, manifest); err != nil {
		zap.L().Warn("run: save manifest", zap.Error(err))
	}
	return manifest, runErr
}

// runSummary is the JSON report a run prints on completion.
type runSummary struct {
	RunID           string             `json:"run_id"`
	SourceURL       string             `json:"source_url"`
	OverallStatus   model.RunStatus    `json:"overall_status"`
	DurationSeconds float64            `json:"duration_seconds"`
	Scraped         int                `json:"scraped"`
	Fit             fitBreakdown       `json:"fit"`
	Enriched        int                `json:"enriched"`
	Steps           []model.StepResult `json:"steps"`
	Outputs         []string           `json:"outputs"`
}

// fitBreakdown reports classification counts. Maybe is present only when
// the run asked for it.
type fitBreakdown struct {
	Total int  `json:"total"`
	Yes   int  `json:"yes"`
	Maybe *int `json:"maybe,omitempty"`
	No    int  `json:"no"`
}

func buildRunSummary(outputDir string, m *model.RunManifest, includeMaybe bool, elapsed time.Duration) runSummary {
	s := runSummary{
		RunID:           m.RunID,
		SourceURL:       m.Config.SourceURL,
		OverallStatus:   m.OverallStatus,
		DurationSeconds: elapsed.Seconds(),
		Steps:           m.Steps,
		Outputs: []string{
			filepath.Join(outputDir, pipeline.ScrapedCSV),
			filepath.Join(outputDir, pipeline.FilteredCSV),
			filepath.Join(outputDir, pipeline.EnrichedCSV),
			filepath.Join(outputDir, pipeline.ManifestJSON),
		},
	}

	if scrape, ok := m.StepFor(model.StepScrape); ok && scrape.RowCount != nil {
		s.Scraped = *scrape.RowCount
	}
	if cls, ok := m.StepFor(model.StepClassify); ok {
		s.Fit.Total = metaCount(cls.Metadata, "total")
		s.Fit.Yes = metaCount(cls.Metadata, "yes")
		s.Fit.No = metaCount(cls.Metadata, "no")
		if includeMaybe {
			maybe := metaCount(cls.Metadata, "maybe")
			s.Fit.Maybe = &maybe
		}
		// Resumed runs skip the stage and carry no metadata; the row count
		// still gives the total.
		if cls.Metadata == nil && cls.RowCount != nil {
			s.Fit.Total = *cls.RowCount
		}
	}
	if enr, ok := m.StepFor(model.StepEnrich); ok && enr.RowCount != nil {
		s.Enriched = *enr.RowCount
	}
	return s
}

// metaCount reads a count out of step metadata, tolerating the float64
// values JSON decoding produces.
func metaCount(meta map[string]any, key string) int {
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
