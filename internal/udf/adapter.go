package udf

import (
	"context"

	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/query"
)

// Lookup is the subset of *shardedlookup.ShardedLookup the UDF
// boundary calls into -- expressed as an interface so tests can supply
// a fake instead of a real sharded cluster.
type Lookup interface {
	GetKeyValues(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error)
	GetKeyValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error)
	GetUint32ValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error)
}

// QueryRunner is the subset of *query.Engine the UDF boundary calls
// into.
type QueryRunner interface {
	RunQuery(ctx context.Context, queryStr string) ([]string, error)
}

// CoreAccess adapts a ShardedLookup and a query Engine into the
// udf.DataAccess capability a UDF invocation is handed -- the only
// door from the sandbox back into the core.
type CoreAccess struct {
	lookup Lookup
	query  QueryRunner
}

var _ DataAccess = (*CoreAccess)(nil)
var _ QueryRunner = (*query.Engine)(nil)

// NewCoreAccess wraps lookup and queryEngine as a DataAccess.
func NewCoreAccess(lookup Lookup, queryEngine QueryRunner) *CoreAccess {
	return &CoreAccess{lookup: lookup, query: queryEngine}
}

func (c *CoreAccess) GetValues(ctx context.Context, keys []string) (map[string]Result, error) {
	res, err := c.lookup.GetKeyValues(ctx, keys)
	if err != nil {
		return nil, err
	}
	return toResults(res), nil
}

func (c *CoreAccess) GetKeyValueSet(ctx context.Context, keys []string) (map[string]Result, error) {
	res, err := c.lookup.GetKeyValueSet(ctx, keys)
	if err != nil {
		return nil, err
	}
	return toResults(res), nil
}

func (c *CoreAccess) GetUint32ValueSet(ctx context.Context, keys []string) (map[string]Result, error) {
	res, err := c.lookup.GetUint32ValueSet(ctx, keys)
	if err != nil {
		return nil, err
	}
	return toResults(res), nil
}

func (c *CoreAccess) RunQuery(ctx context.Context, queryStr string) ([]string, error) {
	return c.query.RunQuery(ctx, queryStr)
}

func toResults(in map[string]lookup.SingleLookupResult) map[string]Result {
	out := make(map[string]Result, len(in))
	for key, res := range in {
		out[key] = Result{
			Found:        res.Status == lookup.StatusOK,
			Value:        res.Value,
			KeysetValues: res.KeysetValues,
			Uint32Values: res.Uint32Values,
		}
	}
	return out
}
