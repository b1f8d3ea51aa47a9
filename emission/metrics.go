package emission

import "github.com/ippan/core/metrics"

// engineMetrics tracks emission/slashing counters for operator dashboards.
type engineMetrics struct {
	roundsDistributed metrics.Counter
	slashesApplied    metrics.Counter
	checkpointsTaken  metrics.Counter
	totalEmittedGauge metrics.Gauge
}

func newEngineMetrics(reg metrics.Registry) (*engineMetrics, error) {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &engineMetrics{
		roundsDistributed: reg.NewCounter("emission_rounds_distributed_total"),
		slashesApplied:    reg.NewCounter("emission_slashes_applied_total"),
		checkpointsTaken:  reg.NewCounter("emission_checkpoints_total"),
		totalEmittedGauge: reg.NewGauge("emission_total_emitted_uipn"),
	}, nil
}
