package chainstate

import (
	stdmath "github.com/ippan/core/utils/math"
)

// Amount is a 64-bit unsigned quantity of µIPN (micro-IPN), the smallest
// accounting unit (§3, GLOSSARY).
type Amount uint64

// IPN is the number of µIPN in one IPN.
const IPN Amount = 1_000_000

// SupplyCap is the maximum total IPN supply, 21,000,000 IPN expressed in
// µIPN.
const SupplyCap Amount = 21_000_000 * uint64(IPN)

// Add returns a+b, saturating at the uint64 maximum on overflow. Grounded on
// the teacher's utils/math.Add64 saturating-detect helper (generalized from
// returning an error to saturating, since Amount arithmetic inside the
// engine's commit path must never abort on a benign per-account overflow —
// only a SupplyCap breach is a consensus fault, enforced separately by
// emission).
func (a Amount) Add(b Amount) Amount {
	sum, err := stdmath.Add64(uint64(a), uint64(b))
	if err != nil {
		return Amount(^uint64(0))
	}
	return Amount(sum)
}

// Sub returns a-b, saturating at zero on underflow.
func (a Amount) Sub(b Amount) Amount {
	diff, err := stdmath.Sub64(uint64(a), uint64(b))
	if err != nil {
		return 0
	}
	return Amount(diff)
}

// CheckedAdd returns a+b and an error if it would overflow uint64 — used at
// the few call sites (SupplyCap enforcement) where overflow must abort
// rather than saturate.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	sum, err := stdmath.Add64(uint64(a), uint64(b))
	return Amount(sum), err
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	return Amount(stdmath.Min64(uint64(a), uint64(b)))
}
