package ingestion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adtech/kvserving/internal/cache"
	"github.com/adtech/kvserving/internal/sharding"
	"github.com/adtech/kvserving/internal/util/workerpool"
)

// RecordSource yields records from one stream (a delta file, or the
// realtime change notifier) until the stream is exhausted or ctx is
// cancelled.
type RecordSource interface {
	Next(ctx context.Context) (Record, bool, error)
}

// Metrics receives per-record and per-delta-load ingestion counters. A
// no-op implementation is used when none is supplied so Coordinator
// never has to nil-check it.
type Metrics interface {
	RecordUpdated()
	RecordDeleted()
	RecordDropped()
	RecordFailed()
	ObserveDeltaLoad(durationSeconds float64)
	RecordGCReclaimed(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordUpdated()           {}
func (noopMetrics) RecordDeleted()           {}
func (noopMetrics) RecordDropped()           {}
func (noopMetrics) RecordFailed()            {}
func (noopMetrics) ObserveDeltaLoad(float64) {}
func (noopMetrics) RecordGCReclaimed(int)    {}

// Stats counts records applied, deleted, dropped, and failed, logged
// and exported so operators can see ingestion health at a glance.
type Stats struct {
	TotalUpdated int64
	TotalDeleted int64
	TotalDropped int64
	TotalFailed  int64
}

// Coordinator applies Records from delta files and realtime
// notifications to the Cache, dropping records that don't belong to
// this shard, and periodically reclaiming tombstones.
type Coordinator struct {
	cache     *cache.Cache
	sharder   *sharding.KeySharder
	shardNum  int
	numShards int
	pool      *workerpool.Pool
	logger    *zap.Logger
	metrics   Metrics

	updated, deleted, dropped, failed atomic.Int64

	mu               sync.Mutex
	minRealtimeTime  int64
	haveRealtimeTime bool
}

// Config controls Coordinator construction.
type Config struct {
	Cache      *cache.Cache
	Sharder    *sharding.KeySharder
	ShardNum   int
	NumShards  int
	NumWorkers int
	Metrics    Metrics
	Logger     *zap.Logger
}

// New constructs a Coordinator backed by a dedicated worker pool sized
// by NumWorkers, which LoadDelta uses to apply delta-file records.
// ApplyRealtime does not use the pool; it applies each record on the
// caller's goroutine.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Coordinator{
		cache:     cfg.Cache,
		sharder:   cfg.Sharder,
		shardNum:  cfg.ShardNum,
		numShards: cfg.NumShards,
		pool:      workerpool.New(workerpool.Config{Name: "ingestion", NumWorkers: cfg.NumWorkers, Logger: logger}),
		metrics:   metrics,
		logger:    logger,
	}
}

// Stats returns a snapshot of ingestion counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		TotalUpdated: c.updated.Load(),
		TotalDeleted: c.deleted.Load(),
		TotalDropped: c.dropped.Load(),
		TotalFailed:  c.failed.Load(),
	}
}

// shouldProcess reports whether record belongs to this shard, mirroring
// ShouldProcessRecord: single-shard deployments process everything,
// multi-shard deployments drop records whose sharding key resolves
// elsewhere.
func (c *Coordinator) shouldProcess(record Record) bool {
	if c.numShards <= 1 {
		return true
	}
	shardNum, shardingKey := c.sharder.ShardNumForKey(record.Key)
	if shardNum == c.shardNum {
		return true
	}
	c.logger.Warn("dropping record not owned by this shard",
		zap.String("key", record.Key), zap.String("sharding_key", shardingKey),
		zap.Int("record_shard", shardNum), zap.Int("server_shard", c.shardNum))
	return false
}

// applyToCache dispatches one record to the right Cache method based
// on its ValueType and MutationType.
func (c *Coordinator) applyToCache(record Record) error {
	switch record.ValueType {
	case ValueTypeScalar:
		if record.Mutation == MutationUpdate {
			return c.cache.UpdateKeyValue(record.Key, record.Value, record.LogicalCommitTime)
		}
		return c.cache.DeleteKey(record.Key, record.LogicalCommitTime)
	case ValueTypeStringSet:
		if record.Mutation == MutationUpdate {
			return c.cache.UpdateKeyValueSet(record.Key, record.StringSetValues, record.LogicalCommitTime)
		}
		return c.cache.DeleteValuesInSet(record.Key, record.StringSetValues, record.LogicalCommitTime)
	case ValueTypeUint32Set:
		if record.Mutation == MutationUpdate {
			return c.cache.UpdateKeyValueUint32Set(record.Key, record.Uint32SetValues, record.LogicalCommitTime)
		}
		return c.cache.DeleteValuesInUint32Set(record.Key, record.Uint32SetValues, record.LogicalCommitTime)
	default:
		return fmt.Errorf("unsupported value type %v", record.ValueType)
	}
}

// applyRecord drops out-of-shard records, otherwise applies the
// mutation and updates counters.
func (c *Coordinator) applyRecord(record Record) {
	if !c.shouldProcess(record) {
		c.dropped.Add(1)
		c.metrics.RecordDropped()
		return
	}
	if err := c.applyToCache(record); err != nil {
		c.failed.Add(1)
		c.metrics.RecordFailed()
		c.logger.Error("failed to apply mutation record", zap.String("key", record.Key), zap.Error(err))
		return
	}
	if record.Mutation == MutationUpdate {
		c.updated.Add(1)
		c.metrics.RecordUpdated()
	} else {
		c.deleted.Add(1)
		c.metrics.RecordDeleted()
	}
}

// LoadDelta drains a delta-file RecordSource to completion, applying
// every record it yields via the worker pool -- the cache's logical-time
// idempotency means records can be applied out of order or concurrently
// without a global barrier.
func (c *Coordinator) LoadDelta(ctx context.Context, source RecordSource) error {
	start := time.Now()
	defer func() { c.metrics.ObserveDeltaLoad(time.Since(start).Seconds()) }()
	for {
		record, ok, err := source.Next(ctx)
		if err != nil {
			return fmt.Errorf("reading delta record: %w", err)
		}
		if !ok {
			return nil
		}
		if err := c.pool.Submit(ctx, workerpool.Task{
			ID: record.Key,
			Fn: func(context.Context) error {
				c.applyRecord(record)
				return nil
			},
		}); err != nil {
			return fmt.Errorf("submitting delta record: %w", err)
		}
	}
}

// ApplyRealtime applies a single record from the realtime change
// notifier synchronously (realtime records must be visible as soon as
// they're acked) and tracks the oldest outstanding logical time for
// the GC cutoff formula.
func (c *Coordinator) ApplyRealtime(record Record) {
	c.mu.Lock()
	if !c.haveRealtimeTime || record.LogicalCommitTime < c.minRealtimeTime {
		c.minRealtimeTime = record.LogicalCommitTime
		c.haveRealtimeTime = true
	}
	c.mu.Unlock()

	c.applyRecord(record)
}

// AckRealtime marks a previously queued realtime logical time as fully
// processed, used by the caller to advance the min-outstanding-time
// watermark once a queue entry drains.
func (c *Coordinator) AckRealtime(newMin int64, stillPending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haveRealtimeTime = stillPending
	if stillPending {
		c.minRealtimeTime = newMin
	}
}

// GCCutoff computes the tombstone-reclamation cutoff: the oldest
// logical time still outstanding in any realtime queue, minus a safety
// margin, so a tombstone isn't reclaimed while an older mutation might
// still be in flight.
func (c *Coordinator) GCCutoff(now int64, safetyMargin int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveRealtimeTime {
		return now - safetyMargin
	}
	return c.minRealtimeTime - safetyMargin
}

// RunGC periodically calls RemoveDeletedKeys using GCCutoff until ctx
// is cancelled.
func (c *Coordinator) RunGC(ctx context.Context, interval time.Duration, safetyMargin int64, nowFn func() int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := c.GCCutoff(nowFn(), safetyMargin)
			reclaimed := c.cache.RemoveDeletedKeys(cutoff)
			c.metrics.RecordGCReclaimed(reclaimed)
		}
	}
}

// Stop shuts down the ingestion worker pool, waiting up to timeout for
// in-flight tasks to finish.
func (c *Coordinator) Stop(timeout time.Duration) error {
	return c.pool.Stop(timeout)
}
