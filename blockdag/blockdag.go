package blockdag

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/hashtimer"
	"github.com/ippan/core/log"
	"github.com/ippan/core/metrics"
	"github.com/ippan/core/set"
)

var (
	ErrUnknownBlock  = errors.New("blockdag: unknown block")
	ErrInvalidWindow = errors.New("blockdag: hashtimer outside acceptance window")
	ErrNoCandidates  = errors.New("blockdag: fork choice called with no candidates")
)

// BondView is the narrow slice of C7 the fork-choice rule depends on: the
// effective bond of a creator at the snapshot taken for a given round.
type BondView interface {
	EffectiveBond(creator chainstate.Address) chainstate.Amount
}

// node is the in-memory representation of one accepted block.
type node struct {
	block    *chainstate.Block
	id       chainstate.BlockID
	creator  chainstate.Address
	parents  []chainstate.BlockID
	children []chainstate.BlockID
}

// Graph is the content-addressed block store and fork-choice engine (C3).
// Genesis is represented implicitly by the zero BlockID; every block whose
// Header.Parents contains only the zero id is treated as a root.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[chainstate.BlockID]*node
	tips    set.Set[chainstate.BlockID]
	orphans *orphanPool
	store   Store
	log     log.Logger
	metrics *dagMetrics
	clock   hashtimer.Clock
}

var genesisID chainstate.BlockID

// New constructs an empty Graph backed by store. Pass a nil store to run
// purely in-memory (useful for tests and the round engine's dry runs).
// clock supplies IPPAN-Time now for the acceptance-window check on insert.
func New(store Store, logger log.Logger, reg metrics.Registry, clock hashtimer.Clock) (*Graph, error) {
	if logger == nil {
		logger = log.NoOp()
	}
	m, err := newDAGMetrics(reg)
	if err != nil {
		return nil, err
	}
	g := &Graph{
		nodes:   make(map[chainstate.BlockID]*node),
		tips:    set.Set[chainstate.BlockID]{},
		orphans: newOrphanPool(time.Now),
		store:   store,
		log:     logger,
		metrics: m,
		clock:   clock,
	}
	return g, nil
}

// InsertBlock admits a block into the graph. Idempotent: re-inserting a
// known block is a no-op. Missing parents quarantine the block in the
// orphan pool instead of rejecting it outright.
func (g *Graph) InsertBlock(b *chainstate.Block) (chainstate.BlockID, error) {
	id, err := b.Header.ID()
	if err != nil {
		return id, err
	}

	if !b.Header.HashTimer.InAcceptanceWindow(g.clock.NowUs()) {
		g.metrics.rejected.Inc()
		return id, ErrInvalidWindow
	}
	if err := b.VerifyMerkleRoot(); err != nil {
		g.metrics.rejected.Inc()
		return id, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; ok {
		return id, nil
	}

	if !g.parentsPresentLocked(b.Header.Parents) {
		g.orphans.add(b, id)
		g.metrics.orphaned.Inc()
		return id, nil
	}

	g.insertLocked(b, id)
	g.admitOrphansLocked()
	return id, nil
}

func (g *Graph) parentsPresentLocked(parents []chainstate.BlockID) bool {
	for _, p := range parents {
		if p == genesisID {
			continue
		}
		if _, ok := g.nodes[p]; !ok {
			return false
		}
	}
	return true
}

func (g *Graph) insertLocked(b *chainstate.Block, id chainstate.BlockID) {
	n := &node{
		block:   b,
		id:      id,
		creator: b.Header.Creator,
		parents: append([]chainstate.BlockID(nil), b.Header.Parents...),
	}
	g.nodes[id] = n
	g.tips.Add(id)
	for _, p := range n.parents {
		if p == genesisID {
			continue
		}
		g.tips.Remove(p)
		if parent, ok := g.nodes[p]; ok {
			parent.children = append(parent.children, id)
		}
	}
	g.orphans.remove(id)
	g.metrics.accepted.Inc()

	if g.store != nil {
		g.persistLocked(b, id)
	}
}

func (g *Graph) persistLocked(b *chainstate.Block, id chainstate.BlockID) {
	raw, err := b.EncodeWire()
	if err != nil {
		g.log.Warn("blockdag: encode failed during persist", log.FieldStr("block", id.String()), log.ErrField(err))
		return
	}
	if err := g.store.Put(blockKey(id), raw); err != nil {
		g.log.Warn("blockdag: store put failed", log.ErrField(err))
	}
	var pb bytes.Buffer
	for _, p := range b.Header.Parents {
		pb.Write(p[:])
	}
	if err := g.store.Put(parentsKey(id), pb.Bytes()); err != nil {
		g.log.Warn("blockdag: store put parents failed", log.ErrField(err))
	}
}

// admitOrphansLocked retries quarantined blocks whose parents may now be
// satisfied. Runs to a fixed point within one insertion.
func (g *Graph) admitOrphansLocked() {
	for {
		progressed := false
		for _, ob := range g.orphans.sweep() {
			id, err := ob.Header.ID()
			if err != nil {
				continue
			}
			if _, ok := g.nodes[id]; ok {
				g.orphans.remove(id)
				continue
			}
			if g.parentsPresentLocked(ob.Header.Parents) {
				g.insertLocked(ob, id)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

// GetBlock returns the accepted block for id.
func (g *Graph) GetBlock(id chainstate.BlockID) (*chainstate.Block, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.block, true
}

// Tips returns the current set of blocks with no accepted children.
func (g *Graph) Tips() []chainstate.BlockID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tips.List()
}

// OrphanCount reports the number of blocks currently quarantined.
func (g *Graph) OrphanCount() int {
	return g.orphans.len()
}

// Ancestors walks parent edges breadth-first up to depth levels (depth < 0
// means unbounded, i.e. all the way to genesis) and returns the distinct
// ancestor ids reached, not including id itself.
func (g *Graph) Ancestors(id chainstate.BlockID, depth int) (set.Set[chainstate.BlockID], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, ErrUnknownBlock
	}

	visited := set.Set[chainstate.BlockID]{}
	frontier := []chainstate.BlockID{id}
	level := 0
	for len(frontier) > 0 && (depth < 0 || level < depth) {
		var next []chainstate.BlockID
		for _, cur := range frontier {
			n, ok := g.nodes[cur]
			if !ok {
				continue
			}
			for _, p := range n.parents {
				if p == genesisID || visited.Contains(p) {
					continue
				}
				visited.Add(p)
				next = append(next, p)
			}
		}
		frontier = next
		level++
	}
	return visited, nil
}

// ForkChoice selects the canonical tip among candidates per §4.3: maximize
// cumulative effective bond of distinct creators along the path to
// genesis, break ties by minimum HashTimer, then by ascending block id.
func (g *Graph) ForkChoice(candidates []chainstate.BlockID, bonds BondView) (chainstate.BlockID, error) {
	if len(candidates) == 0 {
		return chainstate.BlockID{}, ErrNoCandidates
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	type scored struct {
		id     chainstate.BlockID
		weight chainstate.Amount
		ht     hashtimer.HashTimer
	}

	results := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		g.mu.RLock()
		n, ok := g.nodes[c]
		g.mu.RUnlock()
		if !ok {
			return chainstate.BlockID{}, ErrUnknownBlock
		}

		ancestry, err := g.Ancestors(c, -1)
		if err != nil {
			return chainstate.BlockID{}, err
		}

		creators := set.Set[chainstate.Address]{}
		creators.Add(n.creator)
		for aid := range ancestry {
			g.mu.RLock()
			an, ok := g.nodes[aid]
			g.mu.RUnlock()
			if ok {
				creators.Add(an.creator)
			}
		}

		var total chainstate.Amount
		for creator := range creators {
			total = total.Add(bonds.EffectiveBond(creator))
		}

		results = append(results, scored{id: c, weight: total, ht: n.block.Header.HashTimer})
	}

	best := results[0]
	for _, r := range results[1:] {
		switch {
		case r.weight > best.weight:
			best = r
		case r.weight < best.weight:
			continue
		case r.ht.Less(best.ht):
			best = r
		case best.ht.Less(r.ht):
			continue
		case bytes.Compare(r.id[:], best.id[:]) < 0:
			best = r
		}
	}
	return best.id, nil
}

// CommitRound persists the canonical tip for round in a batch of its own.
// The round's block and parent-index entries are not part of that batch:
// they were already written with Store.Put when each block was inserted.
func (g *Graph) CommitRound(round uint64, tip chainstate.BlockID) error {
	if g.store == nil {
		return nil
	}
	batch := g.store.NewBatch()
	if err := batch.Put(roundKey(round), tip[:]); err != nil {
		return err
	}
	return batch.Write()
}

// CanonicalTip returns the tip committed for round by a prior CommitRound,
// as persisted in the round->canonical_tip table.
func (g *Graph) CanonicalTip(round uint64) (chainstate.BlockID, bool, error) {
	if g.store == nil {
		return chainstate.BlockID{}, false, nil
	}
	raw, err := g.store.Get(roundKey(round))
	if err != nil {
		return chainstate.BlockID{}, false, err
	}
	if raw == nil {
		return chainstate.BlockID{}, false, nil
	}
	var id chainstate.BlockID
	copy(id[:], raw)
	return id, true, nil
}

// Rebuild replays all persisted blocks to reconstruct the in-memory graph
// after a restart. The round->canonical_tip table is not loaded here;
// CanonicalTip reads it from the store on demand.
func (g *Graph) Rebuild() error {
	if g.store == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var blocks []*chainstate.Block
	err := g.store.Iterate([]byte{prefixBlock}, func(_ []byte, value []byte) error {
		b, err := chainstate.DecodeWire(value)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
		return nil
	})
	if err != nil {
		return err
	}

	// Insert in HashTimer order so parents are naturally available before
	// children in the common case; any stragglers fall through to the
	// orphan-retry loop in admitOrphansLocked.
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[j].Header.HashTimer.Less(blocks[i].Header.HashTimer) {
				blocks[i], blocks[j] = blocks[j], blocks[i]
			}
		}
	}

	for _, b := range blocks {
		id, err := b.Header.ID()
		if err != nil {
			continue
		}
		if g.parentsPresentLocked(b.Header.Parents) {
			g.insertLocked(b, id)
		} else {
			g.orphans.add(b, id)
		}
	}
	g.admitOrphansLocked()
	return nil
}
