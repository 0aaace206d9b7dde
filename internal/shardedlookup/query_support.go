package shardedlookup

import (
	"context"

	"github.com/adtech/kvserving/internal/lookup"
)

// GetShardedKeyValueSet resolves identifiers to their materialized
// string-set membership for the query engine: identifiers that come
// back NotFound or Internal are simply absent from the result, and the
// caller (the query evaluator) substitutes an empty set for those
// while counting a missing-keyset metric.
func (sl *ShardedLookup) GetShardedKeyValueSet(ctx context.Context, identifiers []string) (map[string]map[string]struct{}, error) {
	results, err := sl.GetKeyValueSet(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]struct{}, len(results))
	for ident, res := range results {
		if res.Status != lookup.StatusOK {
			continue
		}
		set := make(map[string]struct{}, len(res.KeysetValues))
		for _, elem := range res.KeysetValues {
			set[elem] = struct{}{}
		}
		out[ident] = set
	}
	return out, nil
}
