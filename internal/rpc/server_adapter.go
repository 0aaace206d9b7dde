package rpc

import (
	"context"
	"time"

	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/query"
)

// Metrics receives per-RPC lookup observability counters. A no-op
// implementation is used when none is supplied.
type Metrics interface {
	ObserveLookup(kind, status string, durationSeconds float64, numKeys int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveLookup(string, string, float64, int) {}

// LocalServer answers Lookup and RunQuery RPCs from this process's own
// Cache, via LocalLookup and the query Engine -- the only thing a peer
// shard is ever allowed to ask of us.
type LocalServer struct {
	local       *lookup.LocalLookup
	queryEngine *query.Engine
	metrics     Metrics
}

// NewLocalServer wraps local and queryEngine as an rpc.Server. metrics
// may be nil, in which case ObserveLookup is skipped.
func NewLocalServer(local *lookup.LocalLookup, queryEngine *query.Engine, metrics Metrics) *LocalServer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &LocalServer{local: local, queryEngine: queryEngine, metrics: metrics}
}

func (s *LocalServer) Lookup(ctx context.Context, req *InternalLookupRequest) (*InternalLookupResponse, error) {
	start := time.Now()

	var kind string
	var results map[string]lookup.SingleLookupResult
	switch req.Kind {
	case LookupKindScalar:
		kind = "scalar"
		results = s.local.GetKeyValues(req.Keys)
	case LookupKindStringSet:
		kind = "string_set"
		results = s.local.GetKeyValueSet(req.Keys)
	case LookupKindUint32Set:
		kind = "uint32_set"
		results = s.local.GetUint32ValueSet(req.Keys)
	}

	kvPairs := make(map[string]WireResult, len(results))
	for key, res := range results {
		kvPairs[key] = toWireResult(res)
	}
	s.metrics.ObserveLookup(kind, "ok", time.Since(start).Seconds(), len(req.Keys))
	return &InternalLookupResponse{KVPairs: kvPairs}, nil
}

func (s *LocalServer) RunQuery(ctx context.Context, req *InternalRunQueryRequest) (*InternalRunQueryResponse, error) {
	start := time.Now()
	elements, err := s.queryEngine.RunQuery(ctx, req.Query)
	if err != nil {
		s.metrics.ObserveLookup("query", "error", time.Since(start).Seconds(), 0)
		return nil, err
	}
	s.metrics.ObserveLookup("query", "ok", time.Since(start).Seconds(), 0)
	return &InternalRunQueryResponse{Elements: elements}, nil
}

func toWireResult(res lookup.SingleLookupResult) WireResult {
	var status Status
	switch res.Status {
	case lookup.StatusNotFound:
		status = StatusNotFound
	case lookup.StatusInternal:
		status = StatusInternal
	default:
		status = StatusOK
	}
	return WireResult{
		Status:       status,
		Message:      res.Message,
		Value:        res.Value,
		KeysetValues: res.KeysetValues,
		Uint32Values: res.Uint32Values,
	}
}

func fromWireResult(w WireResult) lookup.SingleLookupResult {
	var status lookup.Status
	switch w.Status {
	case StatusNotFound:
		status = lookup.StatusNotFound
	case StatusInternal:
		status = lookup.StatusInternal
	default:
		status = lookup.StatusOK
	}
	return lookup.SingleLookupResult{
		Status:       status,
		Message:      w.Message,
		Value:        w.Value,
		KeysetValues: w.KeysetValues,
		Uint32Values: w.Uint32Values,
	}
}
