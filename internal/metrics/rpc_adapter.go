package metrics

// RPCMetrics adapts Metrics to rpc.Metrics without internal/rpc
// importing prometheus directly.
type RPCMetrics struct {
	m *Metrics
}

// ForRPC returns an rpc.Metrics implementation backed by m.
func (m *Metrics) ForRPC() RPCMetrics { return RPCMetrics{m: m} }

func (r RPCMetrics) ObserveLookup(kind, status string, durationSeconds float64, numKeys int) {
	r.m.ObserveLookup(kind, status, durationSeconds, numKeys)
}
