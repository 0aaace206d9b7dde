package metrics

// ShardedLookupMetrics adapts Metrics to shardedlookup.Metrics without
// internal/shardedlookup importing prometheus directly.
type ShardedLookupMetrics struct {
	m *Metrics
}

// ForShardedLookup returns a shardedlookup.Metrics implementation backed by m.
func (m *Metrics) ForShardedLookup() ShardedLookupMetrics { return ShardedLookupMetrics{m: m} }

func (s ShardedLookupMetrics) ObserveFanOut(durationSeconds float64, paddedLen int, localHits, remoteHits int) {
	s.m.ObserveFanOut(durationSeconds, paddedLen, localHits, remoteHits)
}

func (s ShardedLookupMetrics) RecordFailure(reason string) {
	s.m.RecordFanOutFailure(reason)
}
