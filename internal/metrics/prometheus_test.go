package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/adtech/kvserving/internal/metrics"
)

func TestObserveLookup_IncrementsCounters(t *testing.T) {
	m := metrics.New("test-node-lookup")
	m.ObserveLookup("scalar", "ok", 0.01, 3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupRequestsTotal.WithLabelValues("scalar", "ok")))
}

func TestRecordRateLimitDecision_TracksAcceptedAndRejected(t *testing.T) {
	m := metrics.New("test-node-ratelimit")
	m.RecordRateLimitDecision(true)
	m.RecordRateLimitDecision(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitAcceptedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitRejectedTotal))
}

func TestForQuery_AdaptsToQueryMetrics(t *testing.T) {
	m := metrics.New("test-node-query")
	qm := m.ForQuery()
	qm.IncParseFailure()
	qm.IncMissingKeyset(2)
	qm.ObserveEvaluation(0.002, 5)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryParseFailuresTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueryMissingKeysetTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QueryEvaluationDuration))
}

func TestForIngestion_AdaptsToIngestionMetrics(t *testing.T) {
	m := metrics.New("test-node-ingestion")
	im := m.ForIngestion()
	im.RecordUpdated()
	im.RecordDeleted()
	im.RecordDropped()
	im.RecordFailed()
	im.ObserveDeltaLoad(0.5)
	im.RecordGCReclaimed(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionRecordsUpdatedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionRecordsDeletedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionRecordsDroppedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestionRecordsFailedTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.IngestionGCReclaimedTotal))
}

func TestForRPC_AdaptsToRPCMetrics(t *testing.T) {
	m := metrics.New("test-node-rpc")
	rm := m.ForRPC()
	rm.ObserveLookup("scalar", "ok", 0.01, 4)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupRequestsTotal.WithLabelValues("scalar", "ok")))
}

func TestForShardedLookup_AdaptsToShardedLookupMetrics(t *testing.T) {
	m := metrics.New("test-node-fanout")
	sm := m.ForShardedLookup()
	sm.ObserveFanOut(0.01, 128, 2, 3)
	sm.RecordFailure("rpc_error")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ShardFanOutLocalHits))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ShardFanOutRemoteHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ShardFanOutFailures.WithLabelValues("rpc_error")))
}
