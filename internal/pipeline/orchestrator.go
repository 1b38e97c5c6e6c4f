// Package pipeline orchestrates the scrape, classify, and enrich stages of
// an expo run: stage artifacts land in the output directory as CSVs, a
// manifest records per-stage outcomes, and skip/resume flags control which
// stages actually execute.
package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/cache"
	"github.com/sells-group/expo-cli/internal/classify"
	"github.com/sells-group/expo-cli/internal/config"
	"github.com/sells-group/expo-cli/internal/enrich"
	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/scrape"
	"github.com/sells-group/expo-cli/pkg/serper"
)

// Scraper produces exhibitor companies from a listing page.
type Scraper interface {
	Scrape(ctx context.Context, sourceURL string, limit int) ([]model.Company, error)
}

// Classifier scores companies for industry fit.
type Classifier interface {
	Classify(companies []model.Company) []model.ScoredCompany
}

// Enricher fills firmographic fields for qualifying companies.
type Enricher interface {
	Enrich(ctx context.Context, companies []model.ScoredCompany) ([]model.EnrichedCompany, error)
	Stats() enrich.Stats
}

// EnricherFactory builds an enricher bound to one run's response cache.
// A nil factory means search credentials are missing and the enrich stage
// is skipped.
type EnricherFactory func(store *cache.Store) Enricher

// Orchestrator wires the three stages together and owns the run lifecycle:
// output locking, artifact paths, and the manifest.
type Orchestrator struct {
	outputDir   string
	scraper     Scraper
	classifier  Classifier
	newEnricher EnricherFactory
}

// NewOrchestrator builds the production orchestrator from configuration.
func NewOrchestrator(cfg *config.Config) (*Orchestrator, error) {
	kw := classify.DefaultKeywords()
	if cfg.Classify.KeywordsFile != "" {
		loaded, err := classify.LoadKeywords(cfg.Classify.KeywordsFile)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load keywords")
		}
		kw = loaded
	}

	scraper := scrape.New(scrape.Options{
		UserAgent:     cfg.Scrape.UserAgent,
		Timeout:       time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
		MaxExhibitors: cfg.Scrape.MaxExhibitors,
	})

	var factory EnricherFactory
	if cfg.Serper.Key != "" {
		serperCfg := cfg.Serper
		enrichCfg := cfg.Enrich
		factory = func(store *cache.Store) Enricher {
			opts := []serper.Option{}
			if serperCfg.BaseURL != "" {
				opts = append(opts, serper.WithBaseURL(serperCfg.BaseURL))
			}
			if serperCfg.TimeoutSecs > 0 {
				opts = append(opts, serper.WithHTTPClient(&http.Client{
					Timeout: time.Duration(serperCfg.TimeoutSecs) * time.Second,
				}))
			}
			if serperCfg.RatePerSec > 0 {
				opts = append(opts, serper.WithRateLimit(serperCfg.RatePerSec))
			}
			return enrich.New(enrich.Options{
				Client:           serper.NewClient(serperCfg.Key, opts...),
				Cache:            store,
				Workers:          enrichCfg.Workers,
				MaxRetries:       enrichCfg.MaxRetries,
				InitialBackoffMs: enrichCfg.InitialBackoffMs,
				BreakerThreshold: enrichCfg.BreakerThreshold,
				BreakerResetSecs: enrichCfg.BreakerResetSecs,
				DiscoverDomains:  enrichCfg.DiscoverDomains,
			})
		}
	}

	return &Orchestrator{
		outputDir:   cfg.Output.Dir,
		scraper:     scraper,
		classifier:  classify.New(kw),
		newEnricher: factory,
	}, nil
}

// Execute runs the pipeline per the run config and returns the final
// manifest. Stage failures halt the run; the returned manifest still records
// every stage that completed. The error is non-nil only when a stage failed
// or the run could not start.
func (o *Orchestrator) Execute(ctx context.Context, runCfg model.RunConfig) (*model.RunManifest, error) {
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "pipeline: create output dir")
	}

	// One run per output directory at a time. Concurrent runs would race on
	// the artifacts and the cache file.
	lock := flock.New(o.path(".run.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire run lock")
	}
	if !locked {
		return nil, eris.New("pipeline: another run holds the output directory lock")
	}
	defer lock.Unlock() //nolint:errcheck

	runID := "run_" + time.Now().Format("20060102_150405")
	log := zap.L().With(zap.String("run_id", runID), zap.String("source_url", runCfg.SourceURL))
	log.Info("pipeline: run starting",
		zap.Int("limit", runCfg.EffectiveLimit()),
		zap.Bool("resume", runCfg.Resume),
		zap.Any("skip_steps", runCfg.SkipSteps),
	)

	tracker := NewManifestTracker(o.path(ManifestJSON), runID, runCfg)

	scraped, res, err := RunStep(ctx, runCfg, model.StepScrape, o.path(ScrapedCSV),
		Codec[model.Company]{Read: ReadScrapedCSV, Write: WriteScrapedCSV},
		func(ctx context.Context) ([]model.Company, error) {
			return o.scraper.Scrape(ctx, runCfg.SourceURL, runCfg.EffectiveLimit())
		},
	)
	tracker.Record(res)
	if err != nil {
		return o.fail(tracker, model.StepScrape, err)
	}

	classified, res, err := RunStep(ctx, runCfg, model.StepClassify, o.path(FilteredCSV),
		Codec[model.ScoredCompany]{Read: ReadClassifiedCSV, Write: WriteClassifiedCSV},
		func(ctx context.Context) ([]model.ScoredCompany, error) {
			input := scraped
			if input == nil {
				loaded, rerr := ReadScrapedCSV(o.path(ScrapedCSV))
				if rerr != nil {
					return nil, eris.Wrap(rerr, "classify requires scrape output")
				}
				input = loaded
			}
			return o.classifier.Classify(input), nil
		},
	)
	if res.Status == model.StepExecuted {
		sum := classify.Summarize(classified)
		res.Metadata = map[string]any{
			"total": sum.Total,
			"yes":   sum.Yes,
			"maybe": sum.Maybe,
			"no":    sum.No,
		}
	}
	tracker.Record(res)
	if err != nil {
		return o.fail(tracker, model.StepClassify, err)
	}

	if err := o.runEnrich(ctx, runCfg, tracker, classified); err != nil {
		return o.fail(tracker, model.StepEnrich, err)
	}

	manifest, err := tracker.Finalize()
	if err != nil {
		return manifest, err
	}
	log.Info("pipeline: run finished", zap.String("status", string(manifest.OverallStatus)))
	return manifest, nil
}

// runEnrich handles the enrich stage, including the credentials-missing
// degradation: without a Serper key the stage is recorded as skipped rather
// than failing the whole run.
func (o *Orchestrator) runEnrich(ctx context.Context, runCfg model.RunConfig, tracker *ManifestTracker, classified []model.ScoredCompany) error {
	if o.newEnricher == nil && !runCfg.ShouldSkip(model.StepEnrich) {
		if runCfg.Resume && artifactExists(o.path(EnrichedCSV)) {
			rows, rerr := ReadEnrichedCSV(o.path(EnrichedCSV))
			if rerr == nil {
				tracker.Record(model.Skipped(model.StepEnrich, ReasonResumeExists, len(rows)))
				return nil
			}
			zap.L().Warn("pipeline: resume artifact unreadable", zap.Error(rerr))
		}
		zap.L().Warn("pipeline: serper credentials missing, skipping enrichment")
		tracker.Record(model.Skipped(model.StepEnrich, ReasonMissingCredentials, -1))
		return nil
	}

	var stats enrich.Stats
	_, res, err := RunStep(ctx, runCfg, model.StepEnrich, o.path(EnrichedCSV),
		Codec[model.EnrichedCompany]{Read: ReadEnrichedCSV, Write: WriteEnrichedCSV},
		func(ctx context.Context) ([]model.EnrichedCompany, error) {
			input := classified
			if input == nil {
				loaded, rerr := ReadClassifiedCSV(o.path(FilteredCSV))
				if rerr != nil {
					return nil, eris.Wrap(rerr, "enrich requires classify output")
				}
				input = loaded
			}
			selected := enrich.SelectForEnrichment(input)

			store := cache.Open(o.path(CacheJSON))
			enricher := o.newEnricher(store)
			out, enrichErr := enricher.Enrich(ctx, selected)
			stats = enricher.Stats()
			if flushErr := store.Flush(); flushErr != nil {
				zap.L().Warn("pipeline: flush serper cache", zap.Error(flushErr))
			}
			if enrichErr != nil {
				return nil, enrichErr
			}
			return out, nil
		},
	)
	if res.Status == model.StepExecuted {
		res.Metadata = map[string]any{
			"serper_calls":          stats.SerperCalls,
			"cache_hits":            stats.CacheHits,
			"employee_ranges_found": stats.EmployeeRangesFound,
			"revenue_ranges_found":  stats.RevenueRangesFound,
			"decision_makers_found": stats.DecisionMakersFound,
			"row_failures":          stats.RowFailures,
		}
	}
	tracker.Record(res)
	return err
}

// fail finalizes the manifest after a stage failure so the partial record
// still lands on disk, then surfaces the stage error.
func (o *Orchestrator) fail(tracker *ManifestTracker, step model.StepName, err error) (*model.RunManifest, error) {
	m, ferr := tracker.Finalize()
	if ferr != nil {
		zap.L().Warn("pipeline: finalize manifest after stage failure", zap.Error(ferr))
	}
	return m, eris.Wrapf(err, "pipeline: %s stage", step)
}

func (o *Orchestrator) path(name string) string {
	return filepath.Join(o.outputDir, name)
}
