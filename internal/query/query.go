package query

import (
	"context"
	"sort"
	"time"
)

// SetFetcher resolves a batch of identifiers to their materialized
// string-set membership; ShardedLookup.GetShardedKeyValueSet satisfies
// this with lookup_sets=true fan-out across every shard.
type SetFetcher interface {
	GetShardedKeyValueSet(ctx context.Context, identifiers []string) (map[string]map[string]struct{}, error)
}

// Metrics receives per-query observability counters. A no-op
// implementation is fine when metrics aren't wired up.
type Metrics interface {
	IncParseFailure()
	IncMissingKeyset(count int)
	ObserveEvaluation(durationSeconds float64, resultSize int)
}

type noopMetrics struct{}

func (noopMetrics) IncParseFailure()               {}
func (noopMetrics) IncMissingKeyset(int)           {}
func (noopMetrics) ObserveEvaluation(float64, int) {}

// Engine evaluates RunQuery requests against a SetFetcher.
type Engine struct {
	fetcher SetFetcher
	metrics Metrics
}

// New constructs an Engine. Pass nil metrics to use a no-op recorder.
func New(fetcher SetFetcher, metrics Metrics) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Engine{fetcher: fetcher, metrics: metrics}
}

// RunQuery parses queryStr, fetches every referenced identifier's
// materialized set in one fan-out, evaluates the tree bottom-up, and
// returns the resulting elements as a sorted flat list (sorted only so
// results are deterministic for callers and tests, not part of the
// contract).
func (e *Engine) RunQuery(ctx context.Context, queryStr string) ([]string, error) {
	start := time.Now()

	tree, err := parse(queryStr)
	if err != nil {
		e.metrics.IncParseFailure()
		return nil, err
	}
	if tree == nil {
		e.metrics.ObserveEvaluation(time.Since(start).Seconds(), 0)
		return []string{}, nil
	}

	idents := map[string]struct{}{}
	tree.identifiers(idents)
	identList := make([]string, 0, len(idents))
	for id := range idents {
		identList = append(identList, id)
	}

	values, err := e.fetcher.GetShardedKeyValueSet(ctx, identList)
	if err != nil {
		return nil, err
	}

	missing := 0
	result := tree.eval(values, &missing)
	if missing > 0 {
		e.metrics.IncMissingKeyset(missing)
	}

	out := make([]string, 0, len(result))
	for elem := range result {
		out = append(out, elem)
	}
	sort.Strings(out)
	e.metrics.ObserveEvaluation(time.Since(start).Seconds(), len(out))
	return out, nil
}
