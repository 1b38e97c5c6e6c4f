// Package enrich augments classified companies with employee ranges,
// revenue ranges, and decision-maker contacts gathered through the Serper
// search API. Lookups are cached, rate limited, and retried; a single
// company's failure never aborts the batch.
package enrich

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/expo-cli/internal/cache"
	"github.com/sells-group/expo-cli/internal/model"
	"github.com/sells-group/expo-cli/internal/resilience"
	"github.com/sells-group/expo-cli/pkg/serper"
)

// minConfidence is the floor below which an extracted value is discarded.
const minConfidence = 0.6

// Options configures an Enricher.
type Options struct {
	Client serper.Client
	Cache  *cache.Store

	// Workers bounds concurrent per-company enrichment. Default: 4.
	Workers int

	// MaxRetries is the attempt budget per search call. Default: 3.
	MaxRetries int

	// InitialBackoffMs is the first retry delay. Default: 500.
	InitialBackoffMs int

	// BreakerThreshold is the consecutive transient-failure count that
	// opens the Serper circuit breaker. Default: 5.
	BreakerThreshold int

	// BreakerResetSecs is how long the breaker stays open before probing
	// again. Default: 30.
	BreakerResetSecs int

	// DiscoverDomains looks up an official website for rows that arrive
	// without a domain. Costs one extra search per bare row.
	DiscoverDomains bool
}

// Enricher runs the enrichment passes over classified companies.
type Enricher struct {
	client          serper.Client
	cache           *cache.Store
	workers         int
	retry           resilience.RetryConfig
	breaker         *resilience.CircuitBreaker
	discoverDomains bool

	counters counters
}

type counters struct {
	companies      atomic.Int64
	calls          atomic.Int64
	cacheHits      atomic.Int64
	employeeRanges atomic.Int64
	revenueRanges  atomic.Int64
	decisionMakers atomic.Int64
	rowFailures    atomic.Int64
}

// Stats summarizes one enrichment batch for the run manifest.
type Stats struct {
	CompaniesProcessed  int `json:"companies_processed"`
	SerperCalls         int `json:"serper_calls"`
	CacheHits           int `json:"cache_hits"`
	EmployeeRangesFound int `json:"employee_ranges_found"`
	RevenueRangesFound  int `json:"revenue_ranges_found"`
	DecisionMakersFound int `json:"decision_makers_found"`
	RowFailures         int `json:"row_failures"`
}

// New creates an Enricher.
func New(opts Options) *Enricher {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	retry := resilience.FromRetryConfig(opts.MaxRetries, opts.InitialBackoffMs)
	retry.OnRetry = resilience.RetryLogger("serper", "search")

	cbCfg := resilience.FromCircuitConfig(opts.BreakerThreshold, opts.BreakerResetSecs)
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("enrich: serper circuit state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}

	return &Enricher{
		client:          opts.Client,
		cache:           opts.Cache,
		workers:         workers,
		retry:           retry,
		breaker:         resilience.NewCircuitBreaker(cbCfg),
		discoverDomains: opts.DiscoverDomains,
	}
}

// SelectForEnrichment filters classified rows down to the ones worth
// spending API quota on: fit bucket YES or MAYBE. Rows from older artifacts
// that only carry the yes/no flag fall back to it. Input order is preserved.
func SelectForEnrichment(rows []model.ScoredCompany) []model.ScoredCompany {
	selected := make([]model.ScoredCompany, 0, len(rows))
	for _, r := range rows {
		switch {
		case r.FitBucket == model.FitYes || r.FitBucket == model.FitMaybe:
			selected = append(selected, r)
		case r.FitBucket == "" && r.FitYesNo == "YES":
			selected = append(selected, r)
		}
	}
	return selected
}

// Enrich processes companies with bounded concurrency and returns one output
// row per input row, in input order. Row-level failures are folded into the
// returned rows (empty enrichment fields, ErrorNote set); only context
// cancellation aborts the batch.
func (e *Enricher) Enrich(ctx context.Context, companies []model.ScoredCompany) ([]model.EnrichedCompany, error) {
	out := make([]model.EnrichedCompany, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, c := range companies {
		i, c := i, c
		g.Go(func() error {
			row, err := e.enrichOne(gctx, c)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				e.counters.rowFailures.Add(1)
				zap.L().Warn("company enrichment failed",
					zap.String("company", c.Name),
					zap.Error(err),
				)
				row = e.failSoftRow(c, err)
			}
			out[i] = row
			e.counters.companies.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "enrich: batch aborted")
	}
	return out, nil
}

// enrichOne runs the employee, revenue, and decision-maker passes for one
// company. Any search-call error escalates to the caller; "nothing found"
// leaves the fields empty.
func (e *Enricher) enrichOne(ctx context.Context, c model.ScoredCompany) (model.EnrichedCompany, error) {
	row := model.EnrichedCompany{ScoredCompany: c}
	row.Domain = cleanDomain(c.Domain)

	if strings.TrimSpace(c.Name) == "" {
		return row, nil
	}

	log := zap.L().With(zap.String("company", c.Name))
	log.Info("enriching company", zap.String("domain", row.Domain))

	if row.Domain == "" && e.discoverDomains {
		domain, err := e.discoverDomain(ctx, c.Name)
		if err != nil {
			return row, err
		}
		if domain != "" {
			row.Domain = domain
			log.Debug("discovered domain", zap.String("domain", domain))
		}
	}

	empRange, empSource, empConf, err := e.employeeRange(ctx, c.Name, row.Domain)
	if err != nil {
		return row, err
	}
	if empRange != "" {
		row.EmployeeRange = empRange
		row.EmployeeSource = empSource
		row.EmployeeConfidence = empConf
		e.counters.employeeRanges.Add(1)
	}

	revRange, revSource, revConf, err := e.revenueRange(ctx, c.Name, row.Domain)
	if err != nil {
		return row, err
	}
	if revRange != "" {
		row.RevenueRange = revRange
		row.RevenueSource = revSource
		row.RevenueConfidence = revConf
		e.counters.revenueRanges.Add(1)
	}

	makers, dmSource, dmConf, err := e.decisionMakers(ctx, c.Name, row.Domain)
	if err != nil {
		return row, err
	}
	if len(makers) > 0 {
		row.DecisionMakers = makers
		row.DecisionMakersSource = dmSource
		row.DecisionMakersConfidence = dmConf
		e.counters.decisionMakers.Add(int64(len(makers)))
	}

	return row, nil
}

// failSoftRow builds the output row for a company whose enrichment failed:
// base fields carried through, enrichment fields empty, error recorded.
func (e *Enricher) failSoftRow(c model.ScoredCompany, err error) model.EnrichedCompany {
	row := model.EnrichedCompany{ScoredCompany: c}
	row.Domain = cleanDomain(c.Domain)
	row.ErrorNote = err.Error()
	return row
}

// Stats returns a snapshot of the batch counters.
func (e *Enricher) Stats() Stats {
	return Stats{
		CompaniesProcessed:  int(e.counters.companies.Load()),
		SerperCalls:         int(e.counters.calls.Load()),
		CacheHits:           int(e.counters.cacheHits.Load()),
		EmployeeRangesFound: int(e.counters.employeeRanges.Load()),
		RevenueRangesFound:  int(e.counters.revenueRanges.Load()),
		DecisionMakersFound: int(e.counters.decisionMakers.Load()),
		RowFailures:         int(e.counters.rowFailures.Load()),
	}
}
