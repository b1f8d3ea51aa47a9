package mempool

import "github.com/ippan/core/metrics"

type poolMetrics struct {
	pending  metrics.Gauge
	admitted metrics.Counter
	evicted  metrics.Counter
}

func newPoolMetrics(reg metrics.Registry) *poolMetrics {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &poolMetrics{
		pending:  reg.NewGauge("mempool_pending_transactions"),
		admitted: reg.NewCounter("mempool_transactions_admitted"),
		evicted:  reg.NewCounter("mempool_transactions_evicted"),
	}
}
