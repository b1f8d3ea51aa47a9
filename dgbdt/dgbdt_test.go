package dgbdt

import (
	"crypto/ed25519"
	"testing"

	"github.com/ippan/core/chainstate"
	"github.com/stretchr/testify/require"
)

func newAddr(t *testing.T) chainstate.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := chainstate.AddressFromPublicKey(pub)
	require.NoError(t, err)
	return addr
}

type stubMetrics map[chainstate.Address]ValidatorMetrics

func (s stubMetrics) Metrics(addr chainstate.Address) (ValidatorMetrics, bool) {
	m, ok := s[addr]
	return m, ok
}

func TestSelectIsDeterministicGivenSameInput(t *testing.T) {
	addrs := []chainstate.Address{newAddr(t), newAddr(t), newAddr(t), newAddr(t), newAddr(t)}
	metrics := stubMetrics{}
	for i, a := range addrs {
		metrics[a] = ValidatorMetrics{
			UptimeMs:      int64(90_000 + i*1_000),
			MissedRounds:  int64(i),
			ResponseMsP50: int64(50 + i),
			StakeScaled:   int64(10_000 * (i + 1)),
			SlashCount:    0,
			BlocksLast24h: int64(100 - i),
			AgeRounds:     int64(1_000 + i),
		}
	}

	var modelHash, stateRoot [32]byte
	modelHash[0] = 0xAB
	stateRoot[0] = 0xCD

	in := SelectionInput{
		Eligible:    addrs,
		Metrics:     metrics,
		Model:       nil, // forces legacy fallback
		RoundID:     42,
		ModelHash:   modelHash,
		StateRoot:   stateRoot,
		ShadowCount: 2,
	}

	first, err := Select(in)
	require.NoError(t, err)
	require.True(t, first.FallbackUsed)

	second, err := Select(in)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSelectDiffersAcrossRounds(t *testing.T) {
	addrs := []chainstate.Address{newAddr(t), newAddr(t), newAddr(t), newAddr(t), newAddr(t), newAddr(t)}
	metrics := stubMetrics{}
	for _, a := range addrs {
		metrics[a] = ValidatorMetrics{UptimeMs: 100_000, StakeScaled: 50_000}
	}

	var modelHash, stateRoot [32]byte

	base := SelectionInput{Eligible: addrs, Metrics: metrics, ModelHash: modelHash, StateRoot: stateRoot, ShadowCount: 2}

	a, err := Select(SelectionInput{Eligible: base.Eligible, Metrics: base.Metrics, ModelHash: base.ModelHash, StateRoot: base.StateRoot, ShadowCount: base.ShadowCount, RoundID: 1})
	require.NoError(t, err)
	b, err := Select(SelectionInput{Eligible: base.Eligible, Metrics: base.Metrics, ModelHash: base.ModelHash, StateRoot: base.StateRoot, ShadowCount: base.ShadowCount, RoundID: 2})
	require.NoError(t, err)

	require.NotEqual(t, a, b, "equal weights across a 6-validator pool should almost never draw the same primary+shadows for two distinct round ids")
}

func TestSelectRejectsTooFewCandidates(t *testing.T) {
	addrs := []chainstate.Address{newAddr(t)}
	metrics := stubMetrics{addrs[0]: ValidatorMetrics{UptimeMs: 1}}

	_, err := Select(SelectionInput{
		Eligible:    addrs,
		Metrics:     metrics,
		ShadowCount: 2, // needs 3 candidates, only 1 eligible
	})
	require.ErrorIs(t, err, ErrNotEnoughCandidates)
}

func TestWeightFromScoreClamps(t *testing.T) {
	require.Equal(t, int64(MinWeight), WeightFromScore(-100))
	require.Equal(t, int64(MaxWeight), WeightFromScore(10_000_000))
	require.Equal(t, int64(500), WeightFromScore(500))
}

func TestRankOrdersByWeightThenID(t *testing.T) {
	var idLow, idHigh [32]byte
	idLow[31] = 1
	idHigh[31] = 2

	entries := []Ranked{
		{ID: idHigh, Weight: 100},
		{ID: idLow, Weight: 100},
		{ID: idHigh, Weight: 200},
	}
	Rank(entries)

	require.Equal(t, int64(200), entries[0].Weight)
	require.Equal(t, idLow, entries[1].ID)
	require.Equal(t, idHigh, entries[2].ID)
}

func TestSplitMix64SeedDeterministic(t *testing.T) {
	var modelHash, stateRoot [32]byte
	modelHash[0] = 1
	stateRoot[0] = 2

	s1 := NewSplitMix64Seed(7, modelHash, stateRoot)
	s2 := NewSplitMix64Seed(7, modelHash, stateRoot)
	require.Equal(t, s1, s2)

	s3 := NewSplitMix64Seed(8, modelHash, stateRoot)
	require.NotEqual(t, s1, s3)
}

func TestUint64nStaysInRange(t *testing.T) {
	rng := NewSplitMix64(12345)
	for i := 0; i < 1_000; i++ {
		v := rng.Uint64n(7)
		require.Less(t, v, uint64(7))
	}
}

func TestLoadModelRejectsHashMismatch(t *testing.T) {
	raw := []byte(`{"bias":0,"output_scale":1,"version":1,"trees":[]}`)
	var wrongHash [32]byte
	wrongHash[0] = 0xFF

	_, err := LoadModel(raw, wrongHash)
	require.ErrorIs(t, err, ErrModelHashMismatch)
}

func TestTreeInferTraversesToLeaf(t *testing.T) {
	tree := Tree{
		{FeatureIndex: 0, Threshold: 50, LeftChild: 1, RightChild: 2},
		{LeftChild: -1, RightChild: -1, LeafValue: 10},
		{LeftChild: -1, RightChild: -1, LeafValue: -5},
	}

	below := [NumFeatures]int64{40}
	above := [NumFeatures]int64{60}

	require.Equal(t, int32(10), tree.infer(below))
	require.Equal(t, int32(-5), tree.infer(above))
}
