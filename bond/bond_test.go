package bond

import (
	"crypto/ed25519"
	"testing"

	"github.com/ippan/core/chainstate"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) chainstate.Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := chainstate.AddressFromPublicKey(pub)
	require.NoError(t, err)
	return addr
}

func TestOpenBondRejectsBelowMinimum(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	err := l.OpenBond(v, MinimumBond-1)
	require.ErrorIs(t, err, ErrBelowMinimum)
}

func TestOpenBondRejectsDuplicate(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, MinimumBond))
	err := l.OpenBond(v, MinimumBond)
	require.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestDepositIncreasesEffectiveBond(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, MinimumBond))
	require.NoError(t, l.Deposit(v, MinimumBond))
	require.Equal(t, 2*MinimumBond, l.EffectiveBond(v))
}

func TestQueueWithdrawalReducesEffectiveBondImmediately(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, 20*chainstate.IPN))
	require.NoError(t, l.QueueWithdrawal(v, 5*chainstate.IPN, 100))
	require.Equal(t, 15*chainstate.IPN, l.EffectiveBond(v))
}

func TestQueueWithdrawalRejectsExceedingEffectiveBond(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, MinimumBond))
	err := l.QueueWithdrawal(v, MinimumBond+1, 100)
	require.ErrorIs(t, err, ErrInsufficientBond)
}

func TestMaturedWithdrawalsReleaseAfterUnbondingRounds(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, 20*chainstate.IPN))
	require.NoError(t, l.QueueWithdrawal(v, 5*chainstate.IPN, 100))

	spendable, err := l.MaturedWithdrawals(v, 100+UnbondingRounds-1)
	require.NoError(t, err)
	require.Equal(t, chainstate.Amount(0), spendable)

	spendable, err = l.MaturedWithdrawals(v, 100+UnbondingRounds)
	require.NoError(t, err)
	require.Equal(t, 5*chainstate.IPN, spendable)
}

func TestApplySlashCreditsTreasury(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, 10*chainstate.IPN))

	slashed, err := l.ApplySlash(v, 5_000) // 50%
	require.NoError(t, err)
	require.Equal(t, 5*chainstate.IPN, slashed)
	require.Equal(t, 5*chainstate.IPN, l.EffectiveBond(v))
	require.Equal(t, 5*chainstate.IPN, l.TreasuryBalance())
}

func TestApplySlashRejectsInvalidBps(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, MinimumBond))
	_, err := l.ApplySlash(v, MaxSlashBps+1)
	require.ErrorIs(t, err, ErrInvalidBps)
}

func TestEligibleSetExcludesBelowMinimum(t *testing.T) {
	l := NewLedger()
	above := newValidator(t)
	below := newValidator(t)
	require.NoError(t, l.OpenBond(above, 20*chainstate.IPN))
	require.NoError(t, l.OpenBond(below, MinimumBond))

	_, err := l.ApplySlash(below, 5_000) // drops below to 5 IPN
	require.NoError(t, err)

	eligible := l.EligibleSet()
	require.True(t, eligible.Contains(above))
	require.False(t, eligible.Contains(below))
}

func TestDrawTreasuryCapsAtBalance(t *testing.T) {
	l := NewLedger()
	v := newValidator(t)
	require.NoError(t, l.OpenBond(v, 10*chainstate.IPN))
	_, err := l.ApplySlash(v, 5_000)
	require.NoError(t, err)

	drawn := l.DrawTreasury(100 * chainstate.IPN)
	require.Equal(t, 5*chainstate.IPN, drawn)
	require.Equal(t, chainstate.Amount(0), l.TreasuryBalance())
}
