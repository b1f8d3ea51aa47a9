package round

import (
	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/log"
)

// Finalize runs the deterministic close of the currently open round
// (§4.5: "Finalized: occurs deterministically when IPPAN-Time >=
// opened_at_us + TEMPORAL_FINALITY_MS. No quorum is required."). Callers
// must check the deadline themselves via ReadyToFinalize before calling,
// matching the engine's own check here.
func (e *Engine) Finalize() (*Record, error) {
	e.mu.Lock()
	rs := e.current
	e.mu.Unlock()
	if rs == nil {
		return nil, ErrRoundNotOpen
	}

	now := e.clock.NowUs()
	if now < rs.deadlineUs {
		return nil, ErrDeadlineNotReached
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := &Record{
		RoundID:          rs.id,
		OpenedAtUs:       rs.openedAtUs,
		FinalizedAtUs:    now,
		Primary:          rs.primary,
		Shadows:          rs.shadows,
		Equivocations:    rs.equivocations,
		SelectorFallback: rs.fallbackUsed,
	}

	candidates := make([]chainstate.BlockID, 0, len(rs.proposals))
	for id := range rs.proposals {
		candidates = append(candidates, id)
	}

	if len(candidates) == 0 {
		rec.Phase = PhaseAborted
		rec.LivenessPenalty = true
		e.metrics.livenessPenalties.Inc()
		e.applyEquivocationsLocked(rec)
		e.persistLocked(rec)
		e.current = nil
		return rec, nil
	}

	tip, err := e.dag.ForkChoice(candidates, e.bonds)
	if err != nil {
		e.enterSafeModeLocked(rs.id, now, err)
		return nil, err
	}
	rec.CanonicalBlock = tip

	consistent, dissenting := e.classifyAttestationsLocked(rs, tip)
	rec.ConsistentShadows = consistent
	rec.Dissenting = dissenting

	if len(dissenting) >= 2 {
		for _, d := range dissenting {
			rs.equivocations = append(rs.equivocations, EquivocationProof{
				RoundID: rs.id, Validator: d, Kind: EquivocationShadowDissent, Evidence: []chainstate.BlockID{tip},
			})
		}
		rec.Equivocations = rs.equivocations
	}

	canonical, ok := rs.proposals[tip]
	if !ok {
		return nil, ErrRoundNotOpen
	}

	if e.rewards != nil {
		if err := e.rewards.DistributeRound(rs.id, canonical.block, rs.primary, consistent, rs.fallbackUsed, e.modelHash); err != nil {
			e.enterSafeModeLocked(rs.id, now, err)
			return nil, err
		}
	}
	e.applyEquivocationsLocked(rec)

	if err := e.dag.CommitRound(rs.id, tip); err != nil {
		e.enterSafeModeLocked(rs.id, now, err)
		return nil, err
	}

	rec.Phase = PhaseFinalized
	e.metrics.finalized.Inc()
	e.persistLocked(rec)
	e.current = nil
	return rec, nil
}

// classifyAttestationsLocked splits the round's collected attestations
// into shadows that agreed with the canonical tip and those that dissented.
func (e *Engine) classifyAttestationsLocked(rs *roundState, tip chainstate.BlockID) (consistent, dissenting []chainstate.Address) {
	for verifier, a := range rs.attestations {
		if a.BlockID == tip && a.Outcome == OutcomeConsistent {
			consistent = append(consistent, verifier)
		} else {
			dissenting = append(dissenting, verifier)
		}
	}
	return consistent, dissenting
}

// applyEquivocationsLocked slashes every validator named in rec's
// equivocation proofs per the bps schedule in EquivocationKind.SlashBps,
// routed through e.slasher (normally emission.Engine) so the slash's
// proceeds are folded into ChainState.TotalSlashed in the same atomic
// update as the bond ledger draw (§3, §4.8 item 4) — never directly
// against the bond ledger, which would update the treasury but leave
// ChainState.TotalSlashed stale.
func (e *Engine) applyEquivocationsLocked(rec *Record) {
	if e.slasher == nil {
		return
	}
	for _, proof := range rec.Equivocations {
		if _, err := e.slasher.ApplySlash(proof.Validator, proof.Kind.SlashBps()); err != nil {
			e.log.Warn("round: slash failed",
				log.Field64("round", int64(rec.RoundID)),
				log.FieldStr("validator", proof.Validator.String()),
				log.ErrField(err),
			)
		}
	}
}

func (e *Engine) persistLocked(rec *Record) {
	if e.records == nil {
		return
	}
	if err := e.records.SaveRound(rec); err != nil {
		e.log.Warn("round: failed to persist round record", log.Field64("round", int64(rec.RoundID)), log.ErrField(err))
	}
}

// ReadyToFinalize reports whether the currently open round has reached
// its temporal deadline.
func (e *Engine) ReadyToFinalize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.clock.NowUs() >= e.current.deadlineUs
}
