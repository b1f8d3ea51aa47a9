package round

// ChainStateView is the minimal read the engine needs from persisted
// chain state to recover its position after a restart.
type ChainStateView interface {
	LastFinalizedRound() uint64
}

// Recover reads the last finalized round and returns the round id the
// caller should Open next. If the record store holds a record for the
// round after it that is neither finalized nor aborted, and the DAG store
// already holds a committed canonical tip for that round, Recover returns
// that record marked finalized with the tip as its canonical block, and
// the round id after it. Recover does not check the round's deadline,
// does not run fork choice over uncommitted blocks, and does not persist
// the updated record; a round without a committed tip is left for the
// caller to reopen.
func (e *Engine) Recover(state ChainStateView) (nextRound uint64, recovered *Record, err error) {
	last := state.LastFinalizedRound()
	nextRound = last + 1

	if e.records == nil {
		return nextRound, nil, nil
	}

	pending, ok, err := e.records.LoadRound(nextRound)
	if err != nil {
		return 0, nil, err
	}
	if !ok || pending.Phase == PhaseFinalized || pending.Phase == PhaseAborted {
		return nextRound, nil, nil
	}

	// A record exists for a round that was never marked finalized. If the
	// DAG already committed a tip for it, adopt that tip; otherwise let the
	// caller reopen the round and continue normally.
	tip, hasTip, err := e.dag.CanonicalTip(nextRound)
	if err != nil {
		return 0, nil, err
	}
	if hasTip {
		pending.CanonicalBlock = tip
		pending.Phase = PhaseFinalized
		return nextRound + 1, pending, nil
	}
	return nextRound, nil, nil
}
