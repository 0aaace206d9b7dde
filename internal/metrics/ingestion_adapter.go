package metrics

// IngestionMetrics adapts Metrics to ingestion.Metrics without
// internal/ingestion importing prometheus directly.
type IngestionMetrics struct {
	m *Metrics
}

// ForIngestion returns an ingestion.Metrics implementation backed by m.
func (m *Metrics) ForIngestion() IngestionMetrics { return IngestionMetrics{m: m} }

func (i IngestionMetrics) RecordUpdated() { i.m.IngestionRecordsUpdatedTotal.Inc() }
func (i IngestionMetrics) RecordDeleted() { i.m.IngestionRecordsDeletedTotal.Inc() }
func (i IngestionMetrics) RecordDropped() { i.m.IngestionRecordsDroppedTotal.Inc() }
func (i IngestionMetrics) RecordFailed()  { i.m.IngestionRecordsFailedTotal.Inc() }

func (i IngestionMetrics) ObserveDeltaLoad(durationSeconds float64) {
	i.m.IngestionDeltaLoadDuration.Observe(durationSeconds)
}

func (i IngestionMetrics) RecordGCReclaimed(n int) {
	i.m.IngestionGCReclaimedTotal.Add(float64(n))
}
