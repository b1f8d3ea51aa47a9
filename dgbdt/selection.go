package dgbdt

import "errors"

// ErrNotEnoughCandidates is returned when fewer eligible validators exist
// than primary + shadow_count requires.
var ErrNotEnoughCandidates = errors.New("dgbdt: fewer eligible validators than primary + shadow_count")

// Selection is the outcome of one round's verifier draw.
type Selection struct {
	Primary [32]byte
	Shadows [][32]byte
	// FallbackUsed records whether the legacy linear scorer stood in for
	// the GBDT model, per §4.6's audit requirement.
	FallbackUsed bool
}

// SelectVerifiers implements §4.6 steps 3-4: seed a SplitMix64 generator
// from (round_id, model_hash, state_root), then weighted-sample without
// replacement from the canonically ranked list — primary first, then
// shadowCount more — using cumulative weights with ties broken toward
// the lower validator_id (already guaranteed by Rank's stable sort).
func SelectVerifiers(ranked []Ranked, shadowCount int, roundID uint64, modelHash, stateRoot [32]byte) (Selection, error) {
	if len(ranked) < 1+shadowCount {
		return Selection{}, ErrNotEnoughCandidates
	}

	pool := make([]Ranked, len(ranked))
	copy(pool, ranked)

	rng := NewSplitMix64(NewSplitMix64Seed(roundID, modelHash, stateRoot))

	picks := make([][32]byte, 0, 1+shadowCount)
	for i := 0; i < 1+shadowCount; i++ {
		idx := drawWeightedIndex(pool, rng)
		picks = append(picks, pool[idx].ID)
		pool = append(pool[:idx], pool[idx+1:]...)
	}

	return Selection{Primary: picks[0], Shadows: picks[1:]}, nil
}

// drawWeightedIndex walks the cumulative weight of pool (already in
// canonical (weight desc, id asc) order) and returns the index whose
// cumulative range contains the drawn value.
func drawWeightedIndex(pool []Ranked, rng *SplitMix64) int {
	var total uint64
	for _, r := range pool {
		total += uint64(r.Weight)
	}
	draw := rng.Uint64n(total)

	var cumulative uint64
	for i, r := range pool {
		cumulative += uint64(r.Weight)
		if draw < cumulative {
			return i
		}
	}
	return len(pool) - 1 // unreachable unless total overflowed; last entry is the safe fallback
}
