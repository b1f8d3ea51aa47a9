package emission

import (
	"sort"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/utils/wrappers"
	"github.com/zeebo/blake3"
)

// Checkpoint is a per-audit-period snapshot of the cumulative totals,
// taken every cfg.CheckpointEveryRounds and kept for external verifiers
// to cross-check against their own replay of the round history.
type Checkpoint struct {
	RoundID         uint64
	TotalEmitted    chainstate.Amount
	TotalFees       chainstate.Amount
	TotalSlashed    chainstate.Amount
	ParticipantHist map[chainstate.Address]uint64
}

// Hash returns BLAKE3 over the checkpoint's canonical encoding: the scalar
// totals followed by the participant histogram sorted by address so the
// hash is independent of map iteration order.
func (c Checkpoint) Hash() [32]byte {
	addrs := make([]chainstate.Address, 0, len(c.ParticipantHist))
	for a := range c.ParticipantHist {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })

	p := &wrappers.Packer{}
	p.PackLong(c.RoundID)
	p.PackLong(uint64(c.TotalEmitted))
	p.PackLong(uint64(c.TotalFees))
	p.PackLong(uint64(c.TotalSlashed))
	p.PackInt(uint32(len(addrs)))
	for _, a := range addrs {
		p.PackBytes(a[:])
		p.PackLong(c.ParticipantHist[a])
	}
	return blake3.Sum256(p.Bytes)
}

// checkpointLocked snapshots the current cumulative totals and participant
// histogram. Callers must hold e.mu.
func (e *Engine) checkpointLocked(round uint64) {
	hist := make(map[chainstate.Address]uint64, len(e.histogram))
	for a, n := range e.histogram {
		hist[a] = n
	}
	e.checkpoints = append(e.checkpoints, Checkpoint{
		RoundID:         round,
		TotalEmitted:    e.state.TotalEmitted,
		TotalFees:       e.state.TotalFeesCollected,
		TotalSlashed:    e.state.TotalSlashed,
		ParticipantHist: hist,
	})
	e.metrics.checkpointsTaken.Inc()
}

// Checkpoints returns every checkpoint taken so far, oldest first.
func (e *Engine) Checkpoints() []Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Checkpoint, len(e.checkpoints))
	copy(out, e.checkpoints)
	return out
}
