package dgbdt

import "github.com/ippan/core/chainstate"

// SelectionInput bundles the per-round context SelectVerifiers needs:
// the eligible validator set, their telemetry, and the round's seed
// material.
type SelectionInput struct {
	Eligible    []chainstate.Address
	Metrics     MetricsProvider
	Model       *Model // nil triggers the legacy fallback
	RoundID     uint64
	ModelHash   [32]byte
	StateRoot   [32]byte
	ShadowCount int
}

// Select scores every eligible validator (via the GBDT model when one is
// loaded, falling back to LegacyScore otherwise), ranks them canonically,
// and draws a primary plus ShadowCount shadow verifiers without
// replacement. FallbackUsed reports which scorer was used so callers can
// surface it in chain state per §4.6's audit requirement.
func Select(in SelectionInput) (Selection, error) {
	fallback := in.Model == nil

	ranked := make([]Ranked, 0, len(in.Eligible))
	for _, addr := range in.Eligible {
		m, ok := in.Metrics.Metrics(addr)
		if !ok {
			continue
		}

		var score int64
		if fallback {
			score = LegacyScore(m)
		} else {
			score = in.Model.Score(m.Vector())
		}

		ranked = append(ranked, Ranked{ID: addressToID(addr), Weight: WeightFromScore(score)})
	}

	Rank(ranked)

	sel, err := SelectVerifiers(ranked, in.ShadowCount, in.RoundID, in.ModelHash, in.StateRoot)
	if err != nil {
		return Selection{}, err
	}
	sel.FallbackUsed = fallback
	return sel, nil
}

// addressToID and AddressFromID convert between chainstate.Address and
// the raw [32]byte identity Ranked/Selection work with. Address is
// already a 32-byte Ed25519 key, so this is a direct reinterpretation.
func addressToID(addr chainstate.Address) [32]byte {
	return [32]byte(addr)
}

// AddressFromID is the inverse of addressToID, letting callers translate
// a Selection's Primary/Shadows back into chainstate.Address values.
func AddressFromID(id [32]byte) chainstate.Address {
	return chainstate.Address(id)
}
