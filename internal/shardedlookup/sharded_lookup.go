// Package shardedlookup implements the fan-out/pad/dispatch/merge
// algorithm that turns a batch of keys spanning many shards into one
// response: bucket keys by shard, pad every outbound wire request to
// the same length so a network observer can't infer per-shard key
// skew, dispatch all buckets concurrently, and merge results with
// per-shard failure isolation.
package shardedlookup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	kverrors "github.com/adtech/kvserving/internal/errors"
	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/sharding"
)

// Metrics receives per-fan-out observability counters. A no-op
// implementation is used when none is supplied.
type Metrics interface {
	ObserveFanOut(durationSeconds float64, paddedLen int, localHits, remoteHits int)
	RecordFailure(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFanOut(float64, int, int, int) {}
func (noopMetrics) RecordFailure(string)                 {}

// ShardHandles is the subset of ShardManager's contract ShardedLookup
// needs: which shard is local, and a borrowed remote handle for any
// other shard. Expressed as an interface so tests can supply a fake
// instead of standing up real cluster membership.
type ShardHandles interface {
	CurrentShard() int
	Get(shardNum int) (sharding.RemoteLookupClient, bool)
}

// ShardedLookup is the core of the core: the single entry point every
// UDF-facing read (point, string-set, uint32-set, query) funnels
// through, regardless of how many shards the keys span.
type ShardedLookup struct {
	sharder      *sharding.KeySharder
	shardManager ShardHandles
	local        *lookup.LocalLookup
	metrics      Metrics
	logger       *zap.Logger
}

// New wires the three collaborators: sharder decides bucket
// membership, shardManager hands out remote handles for every shard
// but our own, local serves our own shard without touching the wire.
// Single-shard deployments have no use for fan-out at all and should
// call LocalLookup directly instead of constructing a ShardedLookup.
// metrics may be nil, in which case fan-out observability is skipped.
func New(sharder *sharding.KeySharder, shardManager ShardHandles, local *lookup.LocalLookup, metrics Metrics, logger *zap.Logger) (*ShardedLookup, error) {
	if sharder.NumShards() <= 1 {
		return nil, kverrors.InvalidArgument("ShardedLookup requires num_shards > 1", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ShardedLookup{sharder: sharder, shardManager: shardManager, local: local, metrics: metrics, logger: logger}, nil
}

// localFunc and remoteFunc let GetKeyValues/GetKeyValueSet/
// GetUint32ValueSet share one bucket/pad/dispatch/collect
// implementation instead of three near-identical copies -- all three
// already speak the same lookup.SingleLookupResult currency.
type localFunc func(keys []string) map[string]lookup.SingleLookupResult
type remoteFunc func(ctx context.Context, client sharding.RemoteLookupClient, keys []string, padding int) (map[string]lookup.SingleLookupResult, error)

// bucket partitions deduplicated keys by shard number, preserving
// first-seen order within each bucket for deterministic padding-length
// computation.
func (sl *ShardedLookup) bucket(keys []string) (order []string, buckets map[int][]string) {
	seen := make(map[string]struct{}, len(keys))
	order = make([]string, 0, len(keys))
	buckets = make(map[int][]string)
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		order = append(order, key)
		shardNum, _ := sl.sharder.ShardNumForKey(key)
		buckets[shardNum] = append(buckets[shardNum], key)
	}
	return order, buckets
}

// serializedLen stands in for the real wire encoder: all that matters
// for padding is a length that's a deterministic function of the
// bucket's keys, the same way the original request's serialized byte
// length would be.
func serializedLen(keys []string) int {
	b, _ := json.Marshal(keys)
	return len(b)
}

// fanOut runs the shared bucket/serialize/pad/dispatch/collect
// algorithm described by the core read contract.
func (sl *ShardedLookup) fanOut(ctx context.Context, keys []string, local localFunc, remote remoteFunc) (map[string]lookup.SingleLookupResult, error) {
	if len(keys) == 0 {
		return map[string]lookup.SingleLookupResult{}, nil
	}

	start := time.Now()
	order, buckets := sl.bucket(keys)
	currentShard := sl.shardManager.CurrentShard()

	maxLen := 0
	lens := make(map[int]int, len(buckets))
	for shardNum, bucketKeys := range buckets {
		if shardNum == currentShard {
			continue // own-shard branch never touches the wire, never padded
		}
		l := serializedLen(bucketKeys)
		lens[shardNum] = l
		if l > maxLen {
			maxLen = l
		}
	}

	var mu sync.Mutex
	merged := make(map[string]lookup.SingleLookupResult, len(keys))
	var localHits, remoteHits int

	g, gctx := errgroup.WithContext(ctx)
	for shardNum, bucketKeys := range buckets {
		shardNum, bucketKeys := shardNum, bucketKeys
		g.Go(func() error {
			var results map[string]lookup.SingleLookupResult
			isLocal := shardNum == currentShard

			if isLocal {
				results = local(bucketKeys)
			} else {
				client, ok := sl.shardManager.Get(shardNum)
				if !ok {
					sl.metrics.RecordFailure("missing_handle")
					results = internalResults(bucketKeys, "shard handle unavailable")
				} else {
					padding := maxLen - lens[shardNum]
					res, err := remote(gctx, client, bucketKeys, padding)
					if err != nil {
						sl.metrics.RecordFailure("rpc_error")
						sl.logger.Warn("shard lookup failed", zap.Int("shard_num", shardNum), zap.Error(err))
						results = internalResults(bucketKeys, "data lookup failed")
					} else {
						results = res
					}
				}
			}

			mu.Lock()
			if isLocal {
				localHits += len(bucketKeys)
			} else {
				remoteHits += len(bucketKeys)
			}
			for k, v := range results {
				merged[k] = v
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, kverrors.DeadlineExceeded("sharded lookup batch timed out")
		}
		return nil, kverrors.Internal("sharded lookup fan-out failed", err)
	}
	if ctx.Err() != nil {
		return nil, kverrors.DeadlineExceeded("sharded lookup batch timed out")
	}

	for _, key := range order {
		if _, ok := merged[key]; !ok {
			merged[key] = lookup.SingleLookupResult{Status: lookup.StatusNotFound}
		}
	}
	sl.metrics.ObserveFanOut(time.Since(start).Seconds(), maxLen, localHits, remoteHits)
	return merged, nil
}

func internalResults(keys []string, message string) map[string]lookup.SingleLookupResult {
	out := make(map[string]lookup.SingleLookupResult, len(keys))
	for _, key := range keys {
		out[key] = lookup.SingleLookupResult{Status: lookup.StatusInternal, Message: message}
	}
	return out
}

// GetKeyValues resolves scalar values for keys across every shard.
func (sl *ShardedLookup) GetKeyValues(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return sl.fanOut(ctx, keys, sl.local.GetKeyValues, func(ctx context.Context, c sharding.RemoteLookupClient, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
		return c.GetValues(ctx, keys, padding)
	})
}

// GetKeyValueSet resolves string key-sets for keys across every shard.
func (sl *ShardedLookup) GetKeyValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return sl.fanOut(ctx, keys, sl.local.GetKeyValueSet, func(ctx context.Context, c sharding.RemoteLookupClient, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
		return c.GetKeyValueSet(ctx, keys, padding)
	})
}

// GetUint32ValueSet resolves uint32 key-sets for keys across every shard.
func (sl *ShardedLookup) GetUint32ValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return sl.fanOut(ctx, keys, sl.local.GetUint32ValueSet, func(ctx context.Context, c sharding.RemoteLookupClient, keys []string, padding int) (map[string]lookup.SingleLookupResult, error) {
		return c.GetUint32ValueSet(ctx, keys, padding)
	})
}
