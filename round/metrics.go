package round

import "github.com/ippan/core/metrics"

// engineMetrics tracks round lifecycle counters for operator dashboards.
type engineMetrics struct {
	opened            metrics.Counter
	finalized         metrics.Counter
	livenessPenalties metrics.Counter
	equivocations     metrics.Counter
	safeModeEntered   metrics.Counter
}

func newEngineMetrics(reg metrics.Registry) (*engineMetrics, error) {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &engineMetrics{
		opened:            reg.NewCounter("round_opened_total"),
		finalized:         reg.NewCounter("round_finalized_total"),
		livenessPenalties: reg.NewCounter("round_liveness_penalty_total"),
		equivocations:     reg.NewCounter("round_equivocations_total"),
		safeModeEntered:   reg.NewCounter("round_safe_mode_entered_total"),
	}, nil
}
