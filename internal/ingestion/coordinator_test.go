package ingestion_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/cache"
	"github.com/adtech/kvserving/internal/ingestion"
	"github.com/adtech/kvserving/internal/sharding"
)

type sliceSource struct {
	records []ingestion.Record
	i       int
}

func (s *sliceSource) Next(ctx context.Context) (ingestion.Record, bool, error) {
	if s.i >= len(s.records) {
		return ingestion.Record{}, false, nil
	}
	r := s.records[s.i]
	s.i++
	return r, true, nil
}

type errSource struct{}

func (errSource) Next(ctx context.Context) (ingestion.Record, bool, error) {
	return ingestion.Record{}, false, io.ErrUnexpectedEOF
}

// fakeMetrics counts each ingestion.Metrics call so tests can assert
// Coordinator actually drives it alongside its atomic counters.
type fakeMetrics struct {
	updated, deleted, dropped, failed, gcReclaimed int
}

func (f *fakeMetrics) RecordUpdated()           { f.updated++ }
func (f *fakeMetrics) RecordDeleted()           { f.deleted++ }
func (f *fakeMetrics) RecordDropped()           { f.dropped++ }
func (f *fakeMetrics) RecordFailed()            { f.failed++ }
func (f *fakeMetrics) ObserveDeltaLoad(float64) {}
func (f *fakeMetrics) RecordGCReclaimed(n int)  { f.gcReclaimed += n }

func newSingleShardCoordinator(t *testing.T) (*ingestion.Coordinator, *cache.Cache) {
	c := cache.New(cache.Config{})
	ks, err := sharding.New(sharding.Config{NumShards: 1})
	require.NoError(t, err)
	coord := ingestion.New(ingestion.Config{Cache: c, Sharder: ks, ShardNum: 0, NumShards: 1, NumWorkers: 2})
	return coord, c
}

func TestLoadDelta_AppliesUpdatesAndDeletes(t *testing.T) {
	coord, c := newSingleShardCoordinator(t)
	defer coord.Stop(time.Second)

	src := &sliceSource{records: []ingestion.Record{
		{Key: "a", ValueType: ingestion.ValueTypeScalar, Value: "1", LogicalCommitTime: 1, Mutation: ingestion.MutationUpdate},
		{Key: "b", ValueType: ingestion.ValueTypeScalar, Value: "2", LogicalCommitTime: 1, Mutation: ingestion.MutationUpdate},
		{Key: "b", ValueType: ingestion.ValueTypeScalar, LogicalCommitTime: 2, Mutation: ingestion.MutationDelete},
	}}

	require.NoError(t, coord.LoadDelta(context.Background(), src))
	require.Eventually(t, func() bool {
		return coord.Stats().TotalUpdated == 2 && coord.Stats().TotalDeleted == 1
	}, time.Second, time.Millisecond)

	values := c.GetValues([]string{"a", "b"})
	assert.Equal(t, "1", values["a"])
	_, hasB := values["b"]
	assert.False(t, hasB)
}

func TestLoadDelta_DrivesMetricsAlongsideAtomicCounters(t *testing.T) {
	c := cache.New(cache.Config{})
	ks, err := sharding.New(sharding.Config{NumShards: 1})
	require.NoError(t, err)
	fm := &fakeMetrics{}
	coord := ingestion.New(ingestion.Config{Cache: c, Sharder: ks, ShardNum: 0, NumShards: 1, NumWorkers: 2, Metrics: fm})
	defer coord.Stop(time.Second)

	src := &sliceSource{records: []ingestion.Record{
		{Key: "a", ValueType: ingestion.ValueTypeScalar, Value: "1", LogicalCommitTime: 1, Mutation: ingestion.MutationUpdate},
		{Key: "b", ValueType: ingestion.ValueTypeScalar, LogicalCommitTime: 1, Mutation: ingestion.MutationDelete},
	}}

	require.NoError(t, coord.LoadDelta(context.Background(), src))
	require.Eventually(t, func() bool {
		return coord.Stats().TotalUpdated == 1 && coord.Stats().TotalDeleted == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1, fm.updated)
	assert.Equal(t, 1, fm.deleted)
}

func TestLoadDelta_PropagatesSourceError(t *testing.T) {
	coord, _ := newSingleShardCoordinator(t)
	defer coord.Stop(time.Second)

	err := coord.LoadDelta(context.Background(), errSource{})
	assert.Error(t, err)
}

func TestApplyRealtime_DropsRecordsNotOwnedByShard(t *testing.T) {
	c := cache.New(cache.Config{})
	ks, err := sharding.New(sharding.Config{NumShards: 4, Seed: "seed"})
	require.NoError(t, err)

	// find a key whose shard is NOT 0
	var foreignKey string
	for i := 0; i < 100; i++ {
		k := "k" + string(rune('a'+i))
		if shard, _ := ks.ShardNumForKey(k); shard != 0 {
			foreignKey = k
			break
		}
	}
	require.NotEmpty(t, foreignKey)

	coord := ingestion.New(ingestion.Config{Cache: c, Sharder: ks, ShardNum: 0, NumShards: 4, NumWorkers: 1})
	defer coord.Stop(time.Second)

	coord.ApplyRealtime(ingestion.Record{Key: foreignKey, ValueType: ingestion.ValueTypeScalar, Value: "x", LogicalCommitTime: 1, Mutation: ingestion.MutationUpdate})

	assert.Equal(t, int64(1), coord.Stats().TotalDropped)
	_, found := c.GetValues([]string{foreignKey})[foreignKey]
	assert.False(t, found)
}

func TestGCCutoff_UsesOldestOutstandingRealtimeTime(t *testing.T) {
	coord, _ := newSingleShardCoordinator(t)
	defer coord.Stop(time.Second)

	coord.ApplyRealtime(ingestion.Record{Key: "a", ValueType: ingestion.ValueTypeScalar, Value: "1", LogicalCommitTime: 100, Mutation: ingestion.MutationUpdate})
	coord.ApplyRealtime(ingestion.Record{Key: "b", ValueType: ingestion.ValueTypeScalar, Value: "2", LogicalCommitTime: 50, Mutation: ingestion.MutationUpdate})

	assert.Equal(t, int64(40), coord.GCCutoff(1000, 10))
}

func TestGCCutoff_FallsBackToNowWithNoOutstandingRealtime(t *testing.T) {
	coord, _ := newSingleShardCoordinator(t)
	defer coord.Stop(time.Second)

	assert.Equal(t, int64(990), coord.GCCutoff(1000, 10))
}
