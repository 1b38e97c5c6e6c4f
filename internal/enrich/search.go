package enrich

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/resilience"
	"github.com/sells-group/expo-cli/pkg/serper"
)

// search answers a query from the cache when possible and otherwise issues a
// live Serper call with retry, persisting the raw response for later runs.
// The cache key is the query itself, so identical lookups across passes and
// across runs cost exactly one API call. Calls go through a shared circuit
// breaker; once Serper looks down, the remaining rows fail fast instead of
// each burning a full retry budget.
func (e *Enricher) search(ctx context.Context, query string, num int) (*serper.SearchResponse, error) {
	if raw, ok := e.cache.Get(query); ok {
		var resp serper.SearchResponse
		if err := json.Unmarshal(raw, &resp); err == nil {
			e.counters.cacheHits.Add(1)
			return &resp, nil
		}
		zap.L().Warn("discarding undecodable cache entry", zap.String("query", query))
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*serper.SearchResponse, error) {
		return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*serper.SearchResponse, error) {
			return e.client.Search(ctx, query, num)
		})
	})
	if err != nil {
		return nil, err
	}
	e.counters.calls.Add(1)

	if raw, err := json.Marshal(resp); err == nil {
		e.cache.Put(query, raw)
	}
	return resp, nil
}
