package round

import "errors"

// ErrInSafeMode is returned by Open once the engine has latched into
// safe mode: it accepts no new proposals until an operator inspects and
// clears the fault.
var ErrInSafeMode = errors.New("round: engine is in safe mode, awaiting operator inspection")

// AbortRecord captures the consensus fault that tripped safe mode: a
// fork-choice error, a reward-distribution error (including a supply-cap
// breach), or a DAG commit failure at finalization. These are faults in
// the strict sense — not liveness misses, which are handled by the
// ordinary liveness-penalty path — so the engine refuses to keep
// finalizing rounds against a potentially inconsistent state.
type AbortRecord struct {
	RoundID      uint64
	OccurredAtUs uint64
	Reason       string
}

// InSafeMode reports whether the engine has latched into safe mode.
func (e *Engine) InSafeMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.safeMode != nil
}

// SafeModeRecord returns the fault that triggered safe mode, if any.
func (e *Engine) SafeModeRecord() (AbortRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.safeMode == nil {
		return AbortRecord{}, false
	}
	return *e.safeMode, true
}

// ClearSafeMode releases the latch, allowing Open to resume. Callers are
// expected to have inspected and resolved the underlying fault first;
// the engine itself has no way to verify that, so this is an explicit
// operator action.
func (e *Engine) ClearSafeMode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.safeMode = nil
}

// enterSafeModeLocked latches the engine into safe mode. Callers must
// hold e.mu.
func (e *Engine) enterSafeModeLocked(round uint64, now uint64, cause error) {
	if e.safeMode != nil {
		return
	}
	e.safeMode = &AbortRecord{RoundID: round, OccurredAtUs: now, Reason: cause.Error()}
	e.metrics.safeModeEntered.Inc()
}
