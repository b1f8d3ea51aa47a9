// Package dgbdt implements the Deterministic Gradient-Boosted Decision
// Tree validator scorer and weighted verifier selector (C6).
package dgbdt

import (
	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/fixedpoint"
)

// Scale is the fixed-point scale every feature and model value is
// expressed in (§4.6: SCALE=10_000).
const Scale = 10_000

// NumFeatures is the width of ValidatorMetrics, fixed by §3.
const NumFeatures = 7

// ValidatorMetrics is the 7-feature integer vector extracted per
// validator at each round boundary from per-validator telemetry.
type ValidatorMetrics struct {
	UptimeMs      int64
	MissedRounds  int64
	ResponseMsP50 int64
	StakeScaled   int64
	SlashCount    int64
	BlocksLast24h int64
	AgeRounds     int64
}

// Vector returns the metrics as a fixed-width feature array in the order
// tree nodes index into: [uptime, missed_rounds, response_p50, stake,
// slash_count, blocks_24h, age_rounds].
func (m ValidatorMetrics) Vector() [NumFeatures]int64 {
	return [NumFeatures]int64{
		m.UptimeMs,
		m.MissedRounds,
		m.ResponseMsP50,
		m.StakeScaled,
		m.SlashCount,
		m.BlocksLast24h,
		m.AgeRounds,
	}
}

// legacyWeights is the fixed linear combination used by the fallback
// scorer (§4.6): favors uptime and stake, penalizes missed rounds,
// response latency and slashes.
var legacyWeights = [NumFeatures]int64{
	3,  // uptime_ms
	-5, // missed_rounds
	-1, // response_ms_p50
	2,  // stake_scaled
	-10, // slash_count
	1,  // blocks_last_24h
	1,  // age_rounds
}

// LegacyScore computes the fallback fairness score: a fixed linear
// combination of the 7 features at Scale, used when the GBDT model is
// absent or fails hash verification. The weighted sum runs through
// fixedpoint.SaturatingWeightedSum rather than a bare int64 loop so an
// implausible telemetry input (e.g. a corrupted stake figure) saturates
// instead of silently wrapping.
func LegacyScore(m ValidatorMetrics) int64 {
	v := m.Vector()
	return fixedpoint.SaturatingWeightedSum(v[:], legacyWeights[:], Scale)
}

// MetricsProvider supplies the current telemetry-derived feature vector
// for a validator, refreshed at each round boundary by the round engine.
type MetricsProvider interface {
	Metrics(validator chainstate.Address) (ValidatorMetrics, bool)
}
