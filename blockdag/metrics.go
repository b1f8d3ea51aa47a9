package blockdag

import "github.com/ippan/core/metrics"

// dagMetrics are the block-admission counters exposed to a Prometheus
// registry: how many blocks were accepted, quarantined as orphans, or
// permanently rejected.
type dagMetrics struct {
	accepted metrics.Counter
	orphaned metrics.Counter
	rejected metrics.Counter
}

func newDAGMetrics(reg metrics.Registry) (*dagMetrics, error) {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &dagMetrics{
		accepted: reg.NewCounter("blockdag_blocks_accepted"),
		orphaned: reg.NewCounter("blockdag_blocks_orphaned"),
		rejected: reg.NewCounter("blockdag_blocks_rejected"),
	}, nil
}
