// Package metrics registers the Prometheus series one data-server
// process exposes, covering the lookup/query/ingestion/fan-out
// concerns rather than storage-engine internals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus series this process exposes.
type Metrics struct {
	// Lookup request metrics, covering both the external query path
	// and the internal shard-to-shard RPC path.
	LookupRequestsTotal    *prometheus.CounterVec
	LookupRequestsDuration *prometheus.HistogramVec
	LookupKeysPerRequest   prometheus.Histogram

	// Sharded fan-out metrics.
	ShardFanOutDuration   prometheus.Histogram
	ShardFanOutPaddedLen  prometheus.Histogram
	ShardFanOutFailures   *prometheus.CounterVec
	ShardFanOutLocalHits  prometheus.Counter
	ShardFanOutRemoteHits prometheus.Counter

	// Cache occupancy, sampled from Cache.Stats() by the owning
	// process rather than observed per-operation.
	CacheScalarEntries     prometheus.Gauge
	CacheStringSetEntries  prometheus.Gauge
	CacheUint32SetEntries  prometheus.Gauge
	CacheTombstonedScalars prometheus.Gauge

	// Query engine metrics.
	QueryParseFailuresTotal prometheus.Counter
	QueryMissingKeysetTotal prometheus.Counter
	QueryEvaluationDuration prometheus.Histogram
	QueryResultSize         prometheus.Histogram

	// Rate limiter metrics.
	RateLimitAcceptedTotal prometheus.Counter
	RateLimitRejectedTotal prometheus.Counter

	// Ingestion metrics.
	IngestionRecordsUpdatedTotal prometheus.Counter
	IngestionRecordsDeletedTotal prometheus.Counter
	IngestionRecordsDroppedTotal prometheus.Counter
	IngestionRecordsFailedTotal  prometheus.Counter
	IngestionDeltaLoadDuration   prometheus.Histogram
	IngestionGCReclaimedTotal    prometheus.Counter
	IngestionRealtimeLagSeconds  prometheus.Gauge

	// Shard topology metrics.
	ShardPeersConnected prometheus.Gauge
	ShardPeersExpected  prometheus.Gauge
}

// New creates and registers every series, labeling everything with
// nodeID so series from different nodes in the same deployment stay
// distinguishable once scraped.
func New(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		LookupRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "lookup",
			Name:        "requests_total",
			Help:        "Total lookup requests by kind (scalar, string_set, uint32_set, query) and outcome",
			ConstLabels: labels,
		}, []string{"kind", "status"}),
		LookupRequestsDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "lookup",
			Name:        "request_duration_seconds",
			Help:        "Histogram of lookup request durations by kind",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"kind"}),
		LookupKeysPerRequest: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "lookup",
			Name:        "keys_per_request",
			Help:        "Histogram of the number of keys requested per lookup call",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),

		ShardFanOutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "fan_out_duration_seconds",
			Help:        "Histogram of ShardedLookup fan-out durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ShardFanOutPaddedLen: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "fan_out_padded_length_bytes",
			Help:        "Histogram of the padded wire length used for cross-shard requests",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(64, 2, 10),
		}),
		ShardFanOutFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "fan_out_failures_total",
			Help:        "Total fan-out bucket failures by reason (missing_handle, rpc_error)",
			ConstLabels: labels,
		}, []string{"reason"}),
		ShardFanOutLocalHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "fan_out_local_hits_total",
			Help:        "Total keys in fan-out buckets routed to this process's own shard, never padded",
			ConstLabels: labels,
		}),
		ShardFanOutRemoteHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "fan_out_remote_hits_total",
			Help:        "Total keys in fan-out buckets routed to a peer shard, including failed buckets",
			ConstLabels: labels,
		}),

		CacheScalarEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "cache",
			Name:        "scalar_entries",
			Help:        "Current number of scalar entries in the cache",
			ConstLabels: labels,
		}),
		CacheStringSetEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "cache",
			Name:        "string_set_entries",
			Help:        "Current number of string-set keys in the cache",
			ConstLabels: labels,
		}),
		CacheUint32SetEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "cache",
			Name:        "uint32_set_entries",
			Help:        "Current number of uint32-set keys in the cache",
			ConstLabels: labels,
		}),
		CacheTombstonedScalars: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "cache",
			Name:        "tombstoned_scalars",
			Help:        "Current number of scalar tombstones awaiting GC",
			ConstLabels: labels,
		}),

		QueryParseFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "query",
			Name:        "parse_failures_total",
			Help:        "Total query strings that failed to parse",
			ConstLabels: labels,
		}),
		QueryMissingKeysetTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "query",
			Name:        "missing_keyset_total",
			Help:        "Total identifiers referenced by a query whose keyset was not found",
			ConstLabels: labels,
		}),
		QueryEvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "query",
			Name:        "evaluation_duration_seconds",
			Help:        "Histogram of query parse+fetch+evaluate durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		QueryResultSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "query",
			Name:        "result_size",
			Help:        "Histogram of the number of elements a query evaluates to",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),

		RateLimitAcceptedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "rate_limit",
			Name:        "accepted_total",
			Help:        "Total requests admitted by the rate limiter",
			ConstLabels: labels,
		}),
		RateLimitRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "rate_limit",
			Name:        "rejected_total",
			Help:        "Total requests rejected by the rate limiter",
			ConstLabels: labels,
		}),

		IngestionRecordsUpdatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "records_updated_total",
			Help:        "Total records applied as updates from delta files or realtime messages",
			ConstLabels: labels,
		}),
		IngestionRecordsDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "records_deleted_total",
			Help:        "Total records applied as deletes from delta files or realtime messages",
			ConstLabels: labels,
		}),
		IngestionRecordsDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "records_dropped_total",
			Help:        "Total records dropped because they do not belong to this shard",
			ConstLabels: labels,
		}),
		IngestionRecordsFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "records_failed_total",
			Help:        "Total records that failed to apply to the cache",
			ConstLabels: labels,
		}),
		IngestionDeltaLoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "delta_load_duration_seconds",
			Help:        "Histogram of full delta file load durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		IngestionGCReclaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "gc_reclaimed_total",
			Help:        "Total keys (scalar tombstones and emptied key-sets) physically reclaimed by RemoveDeletedKeys",
			ConstLabels: labels,
		}),
		IngestionRealtimeLagSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "ingestion",
			Name:        "realtime_lag_seconds",
			Help:        "Age of the oldest outstanding (unacked) realtime message",
			ConstLabels: labels,
		}),

		ShardPeersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "peers_connected",
			Help:        "Current number of peer shards with a live handle",
			ConstLabels: labels,
		}),
		ShardPeersExpected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvserving",
			Subsystem:   "shard",
			Name:        "peers_expected",
			Help:        "Configured number of peer shards this process should connect to",
			ConstLabels: labels,
		}),
	}
}

// ObserveLookup records one completed lookup call.
func (m *Metrics) ObserveLookup(kind, status string, duration float64, numKeys int) {
	m.LookupRequestsTotal.WithLabelValues(kind, status).Inc()
	m.LookupRequestsDuration.WithLabelValues(kind).Observe(duration)
	m.LookupKeysPerRequest.Observe(float64(numKeys))
}

// ObserveFanOut records one ShardedLookup fan-out call.
func (m *Metrics) ObserveFanOut(duration float64, paddedLen int, localHits, remoteHits int) {
	m.ShardFanOutDuration.Observe(duration)
	if paddedLen > 0 {
		m.ShardFanOutPaddedLen.Observe(float64(paddedLen))
	}
	m.ShardFanOutLocalHits.Add(float64(localHits))
	m.ShardFanOutRemoteHits.Add(float64(remoteHits))
}

// RecordFanOutFailure records one failed fan-out bucket.
func (m *Metrics) RecordFanOutFailure(reason string) {
	m.ShardFanOutFailures.WithLabelValues(reason).Inc()
}

// UpdateCacheStats samples current cache occupancy into the gauges.
func (m *Metrics) UpdateCacheStats(scalar, stringSets, uint32Sets, tombstoned int) {
	m.CacheScalarEntries.Set(float64(scalar))
	m.CacheStringSetEntries.Set(float64(stringSets))
	m.CacheUint32SetEntries.Set(float64(uint32Sets))
	m.CacheTombstonedScalars.Set(float64(tombstoned))
}

// ObserveQuery records one completed query evaluation.
func (m *Metrics) ObserveQuery(duration float64, resultSize int, missingKeysets int) {
	m.QueryEvaluationDuration.Observe(duration)
	m.QueryResultSize.Observe(float64(resultSize))
	if missingKeysets > 0 {
		m.QueryMissingKeysetTotal.Add(float64(missingKeysets))
	}
}

// RecordQueryParseFailure increments the parse-failure counter.
func (m *Metrics) RecordQueryParseFailure() {
	m.QueryParseFailuresTotal.Inc()
}

// RecordRateLimitDecision records whether a request was admitted.
func (m *Metrics) RecordRateLimitDecision(accepted bool) {
	if accepted {
		m.RateLimitAcceptedTotal.Inc()
	} else {
		m.RateLimitRejectedTotal.Inc()
	}
}

// UpdateShardTopology samples current shard connectivity into the
// gauges.
func (m *Metrics) UpdateShardTopology(connected, expected int) {
	m.ShardPeersConnected.Set(float64(connected))
	m.ShardPeersExpected.Set(float64(expected))
}
