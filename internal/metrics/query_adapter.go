package metrics

// QueryMetrics adapts Metrics to query.Metrics without internal/query
// importing prometheus directly.
type QueryMetrics struct {
	m *Metrics
}

// ForQuery returns a query.Metrics implementation backed by m.
func (m *Metrics) ForQuery() QueryMetrics { return QueryMetrics{m: m} }

func (q QueryMetrics) IncParseFailure() { q.m.RecordQueryParseFailure() }

func (q QueryMetrics) IncMissingKeyset(count int) {
	q.m.QueryMissingKeysetTotal.Add(float64(count))
}

func (q QueryMetrics) ObserveEvaluation(durationSeconds float64, resultSize int) {
	q.m.ObserveQuery(durationSeconds, resultSize, 0)
}
