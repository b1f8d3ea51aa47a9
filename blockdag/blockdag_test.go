package blockdag

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/hashtimer"
	"github.com/ippan/core/log"
	"github.com/ippan/core/metrics"
	"github.com/stretchr/testify/require"
)

type fixedClock uint64

func (c fixedClock) NowUs() uint64 { return uint64(c) }

type stubBonds map[chainstate.Address]chainstate.Amount

func (b stubBonds) EffectiveBond(a chainstate.Address) chainstate.Amount { return b[a] }

func newGraph(t *testing.T, store Store, now uint64) *Graph {
	t.Helper()
	g, err := New(store, log.NoOp(), metrics.NewRegistry(), fixedClock(now))
	require.NoError(t, err)
	return g
}

func newAddress(t *testing.T) (chainstate.Address, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := chainstate.AddressFromPublicKey(pub)
	require.NoError(t, err)
	return addr, priv
}

func buildBlock(t *testing.T, creator chainstate.Address, priv ed25519.PrivateKey, parents []chainstate.BlockID, round uint64, timeUs uint64, salt byte) *chainstate.Block {
	t.Helper()
	var node [32]byte
	b := &chainstate.Block{
		Header: chainstate.Header{
			Version:      1,
			Parents:      parents,
			Creator:      creator,
			RoundID:      round,
			MedianTimeUs: timeUs,
			HashTimer:    hashtimer.Derive(hashtimer.ContextBlock, timeUs, nil, []byte{salt}, round, node),
		},
	}
	b.SetMerkleRoot()
	require.NoError(t, b.Header.Sign(priv))
	return b
}

func TestInsertBlockIdempotent(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	creator, priv := newAddress(t)
	b := buildBlock(t, creator, priv, []chainstate.BlockID{{}}, 1, 1_000_000, 0)

	id1, err := g.InsertBlock(b)
	require.NoError(t, err)
	id2, err := g.InsertBlock(b)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Len(t, g.Tips(), 1)
}

func TestInsertBlockOrphanedUntilParentArrives(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	creator, priv := newAddress(t)

	root := buildBlock(t, creator, priv, []chainstate.BlockID{{}}, 1, 1_000_000, 0)
	rootID, err := root.Header.ID()
	require.NoError(t, err)

	child := buildBlock(t, creator, priv, []chainstate.BlockID{rootID}, 2, 1_000_100, 1)

	// Insert the child first: it must quarantine, not fail.
	_, err = g.InsertBlock(child)
	require.NoError(t, err)
	require.Equal(t, 1, g.OrphanCount())
	require.Empty(t, g.Tips())

	_, err = g.InsertBlock(root)
	require.NoError(t, err)
	require.Equal(t, 0, g.OrphanCount())

	tips := g.Tips()
	require.Len(t, tips, 1)
	childID, err := child.Header.ID()
	require.NoError(t, err)
	require.Equal(t, childID, tips[0])
}

func TestAncestorsWalksToGenesis(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	creator, priv := newAddress(t)

	root := buildBlock(t, creator, priv, []chainstate.BlockID{{}}, 1, 1_000_000, 0)
	rootID, err := root.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(root)
	require.NoError(t, err)

	mid := buildBlock(t, creator, priv, []chainstate.BlockID{rootID}, 2, 1_000_100, 1)
	midID, err := mid.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(mid)
	require.NoError(t, err)

	tip := buildBlock(t, creator, priv, []chainstate.BlockID{midID}, 3, 1_000_200, 2)
	tipID, err := tip.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(tip)
	require.NoError(t, err)

	ancestors, err := g.Ancestors(tipID, -1)
	require.NoError(t, err)
	require.True(t, ancestors.Contains(midID))
	require.True(t, ancestors.Contains(rootID))
	require.Equal(t, 2, ancestors.Len())
}

func TestForkChoicePicksHeavierBondChain(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	heavy, heavyPriv := newAddress(t)
	light, lightPriv := newAddress(t)

	a := buildBlock(t, heavy, heavyPriv, []chainstate.BlockID{{}}, 1, 1_000_000, 0)
	aID, err := a.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(a)
	require.NoError(t, err)

	b := buildBlock(t, light, lightPriv, []chainstate.BlockID{{}}, 1, 1_000_050, 1)
	bID, err := b.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(b)
	require.NoError(t, err)

	bonds := stubBonds{
		heavy: 100 * chainstate.IPN,
		light: 10 * chainstate.IPN,
	}

	winner, err := g.ForkChoice([]chainstate.BlockID{aID, bID}, bonds)
	require.NoError(t, err)
	require.Equal(t, aID, winner)
}

func TestForkChoiceTiesBreakByHashTimer(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	creatorA, privA := newAddress(t)
	creatorB, privB := newAddress(t)

	bonds := stubBonds{creatorA: 10 * chainstate.IPN, creatorB: 10 * chainstate.IPN}

	early := buildBlock(t, creatorA, privA, []chainstate.BlockID{{}}, 1, 1_000_000, 0)
	earlyID, err := early.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(early)
	require.NoError(t, err)

	late := buildBlock(t, creatorB, privB, []chainstate.BlockID{{}}, 1, 1_000_500, 1)
	lateID, err := late.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(late)
	require.NoError(t, err)

	winner, err := g.ForkChoice([]chainstate.BlockID{earlyID, lateID}, bonds)
	require.NoError(t, err)
	require.Equal(t, earlyID, winner, "equal bond weight must break ties toward the earlier HashTimer")
}

func TestForkChoiceNoCandidates(t *testing.T) {
	g := newGraph(t, nil, 1_000_000)
	_, err := g.ForkChoice(nil, stubBonds{})
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestGraphRebuildFromStore(t *testing.T) {
	store := NewMemStore()
	g := newGraph(t, store, 1_000_000)
	creator, priv := newAddress(t)

	root := buildBlock(t, creator, priv, []chainstate.BlockID{{}}, 1, 1_000_000, 0)
	rootID, err := root.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(root)
	require.NoError(t, err)

	child := buildBlock(t, creator, priv, []chainstate.BlockID{rootID}, 2, 1_000_100, 1)
	childID, err := child.Header.ID()
	require.NoError(t, err)
	_, err = g.InsertBlock(child)
	require.NoError(t, err)

	fresh := newGraph(t, store, 1_000_000)
	require.NoError(t, fresh.Rebuild())

	_, ok := fresh.GetBlock(rootID)
	require.True(t, ok)
	_, ok = fresh.GetBlock(childID)
	require.True(t, ok)
	require.Equal(t, []chainstate.BlockID{childID}, fresh.Tips())
}

func TestOrphanSweepRespectsTTL(t *testing.T) {
	now := time.Unix(0, 0)
	p := newOrphanPool(func() time.Time { return now })

	creator, priv := newAddress(t)
	b := buildBlock(t, creator, priv, []chainstate.BlockID{{1}}, 1, 1_000_000, 0)
	id, err := b.Header.ID()
	require.NoError(t, err)
	p.add(b, id)
	require.Equal(t, 1, p.len())

	now = now.Add(orphanTTL + time.Second)
	live := p.sweep()
	require.Empty(t, live)
	require.Equal(t, 0, p.len())
}
