package chainstate

// Account is the per-address balance/nonce record (§3). Mutated only by
// finalized rounds; mempool-visible state is a shadow snapshot, never a
// mutation of this struct directly.
type Account struct {
	Balance   Amount
	NextNonce uint64
}

// CanAfford reports whether the account can pay amount+fee without its
// balance going negative, the mempool admission and block-assembly
// solvency check (§4.4).
func (a Account) CanAfford(amount, fee Amount) bool {
	total, err := amount.CheckedAdd(fee)
	if err != nil {
		return false
	}
	return a.Balance >= total
}
