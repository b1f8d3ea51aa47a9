// Package bond implements validator bond lifecycle and slashing (C7):
// open_bond, deposit, queue_withdrawal, apply_slash, and the
// effective_bond accounting the fork-choice rule and D-GBDT selection
// both depend on.
package bond

import (
	"errors"
	"sync"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/set"
)

// MinimumBond is the 10 IPN floor below which a validator is removed from
// the eligibility set at the next round boundary.
const MinimumBond = 10 * chainstate.IPN

// UnbondingRounds is the default delay (N=1440) a queued withdrawal waits
// before becoming spendable.
const UnbondingRounds = 1440

// MaxSlashBps is 100% expressed in basis points, the ceiling a single
// apply_slash call may request.
const MaxSlashBps = 10_000

var (
	ErrBelowMinimum     = errors.New("bond: amount below minimum bond")
	ErrNoSuchValidator  = errors.New("bond: validator has no open bond")
	ErrAlreadyOpen      = errors.New("bond: validator already has an open bond")
	ErrInsufficientBond = errors.New("bond: withdrawal exceeds effective bond")
	ErrInvalidBps       = errors.New("bond: slash bps must be in [0, 10000]")
)

// withdrawal is one queued unbonding request, released at MatureAtRound.
type withdrawal struct {
	amount        chainstate.Amount
	matureAtRound uint64
}

// Record is one validator's bond state.
type Record struct {
	Validator    chainstate.Address
	Deposited    chainstate.Amount
	Slashed      chainstate.Amount
	withdrawals  []withdrawal
}

// EffectiveBond is Deposited minus Slashed minus every withdrawal still
// queued (queued amounts are no longer at stake but not yet spendable
// either; they are excluded from the eligibility-weighing bond just the
// same as slashed amounts).
func (r *Record) EffectiveBond() chainstate.Amount {
	total := r.Deposited.Sub(r.Slashed)
	for _, w := range r.withdrawals {
		total = total.Sub(w.amount)
	}
	return total
}

// Ledger tracks every validator's bond record and exposes the set of
// currently eligible validators (effective_bond >= MinimumBond).
type Ledger struct {
	mu      sync.RWMutex
	records map[chainstate.Address]*Record
	treasury chainstate.Amount // accumulated slashed amounts, credited to C8
}

// NewLedger returns an empty bond ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[chainstate.Address]*Record)}
}

// OpenBond creates a new bond record for validator, failing if one
// already exists or amount is below MinimumBond.
func (l *Ledger) OpenBond(validator chainstate.Address, amount chainstate.Amount) error {
	if amount < MinimumBond {
		return ErrBelowMinimum
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[validator]; ok {
		return ErrAlreadyOpen
	}
	l.records[validator] = &Record{Validator: validator, Deposited: amount}
	return nil
}

// Deposit adds amount to validator's existing bond.
func (l *Ledger) Deposit(validator chainstate.Address, amount chainstate.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[validator]
	if !ok {
		return ErrNoSuchValidator
	}
	r.Deposited = r.Deposited.Add(amount)
	return nil
}

// QueueWithdrawal moves amount out of validator's effective bond
// immediately and schedules it to become spendable UnbondingRounds after
// currentRound.
func (l *Ledger) QueueWithdrawal(validator chainstate.Address, amount chainstate.Amount, currentRound uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[validator]
	if !ok {
		return ErrNoSuchValidator
	}
	if amount > r.EffectiveBond() {
		return ErrInsufficientBond
	}
	r.withdrawals = append(r.withdrawals, withdrawal{
		amount:        amount,
		matureAtRound: currentRound + UnbondingRounds,
	})
	return nil
}

// MaturedWithdrawals removes and returns every withdrawal that has become
// spendable as of currentRound, deducting them from Deposited.
func (l *Ledger) MaturedWithdrawals(validator chainstate.Address, currentRound uint64) (chainstate.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[validator]
	if !ok {
		return 0, ErrNoSuchValidator
	}
	var spendable chainstate.Amount
	remaining := r.withdrawals[:0]
	for _, w := range r.withdrawals {
		if currentRound >= w.matureAtRound {
			spendable = spendable.Add(w.amount)
			r.Deposited = r.Deposited.Sub(w.amount)
			continue
		}
		remaining = append(remaining, w)
	}
	r.withdrawals = remaining
	return spendable, nil
}

// ApplySlash slashes validator's effective bond by bps basis points,
// crediting the slashed amount to the treasury pool C8 tracks.
func (l *Ledger) ApplySlash(validator chainstate.Address, bps uint32) (chainstate.Amount, error) {
	if bps > MaxSlashBps {
		return 0, ErrInvalidBps
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[validator]
	if !ok {
		return 0, ErrNoSuchValidator
	}
	effective := r.EffectiveBond()
	amount := chainstate.Amount(uint64(effective) * uint64(bps) / MaxSlashBps)
	r.Slashed = r.Slashed.Add(amount)
	l.treasury = l.treasury.Add(amount)
	return amount, nil
}

// EffectiveBond returns validator's current effective bond, or 0 if it
// has no open bond. Implements blockdag.BondView.
func (l *Ledger) EffectiveBond(validator chainstate.Address) chainstate.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.records[validator]
	if !ok {
		return 0
	}
	return r.EffectiveBond()
}

// TreasuryBalance returns the cumulative slashed amount credited to the
// treasury and not yet drawn down by C8.
func (l *Ledger) TreasuryBalance() chainstate.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.treasury
}

// DrawTreasury debits up to amount from the treasury pool (C8 calls this
// when distributing slashed funds) and reports how much was actually
// available.
func (l *Ledger) DrawTreasury(amount chainstate.Amount) chainstate.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	drawn := chainstate.Min(amount, l.treasury)
	l.treasury = l.treasury.Sub(drawn)
	return drawn
}

// EligibleSet returns the validators whose effective bond currently meets
// MinimumBond — the set C6 draws its selection candidates from.
func (l *Ledger) EligibleSet() set.Set[chainstate.Address] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := set.Set[chainstate.Address]{}
	for addr, r := range l.records {
		if r.EffectiveBond() >= MinimumBond {
			out.Add(addr)
		}
	}
	return out
}
