package mempool

import (
	"crypto/ed25519"
	"testing"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/hashtimer"
	"github.com/stretchr/testify/require"
)

type stubAccounts map[chainstate.Address]chainstate.Account

func (s stubAccounts) Account(addr chainstate.Address) (chainstate.Account, bool) {
	a, ok := s[addr]
	return a, ok
}

func newTx(t *testing.T, fee chainstate.Amount, nonce uint64, salt byte) (*chainstate.Transaction, chainstate.Address, ed25519.PrivateKey) {
	t.Helper()
	fromPub, fromPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	toPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	from, err := chainstate.AddressFromPublicKey(fromPub)
	require.NoError(t, err)
	to, err := chainstate.AddressFromPublicKey(toPub)
	require.NoError(t, err)

	var node [32]byte
	tx := &chainstate.Transaction{
		Version: chainstate.TxVersion,
		Type:    chainstate.TxTransfer,
		From:    from,
		To:      to,
		Amount:  chainstate.IPN,
		Nonce:   nonce,
		Fee:     fee,
		HashTimer: hashtimer.Derive(hashtimer.ContextTx, 1_000_000+uint64(salt), nil, []byte{salt}, nonce, node),
	}
	require.NoError(t, tx.Sign(fromPriv))
	require.NoError(t, tx.ComputeID())
	return tx, from, fromPriv
}

func TestAddRejectsBadNonce(t *testing.T) {
	p := New(0, 0, nil)
	tx, from, _ := newTx(t, 1_000, 1, 0)
	accounts := stubAccounts{from: {Balance: 100 * chainstate.IPN, NextNonce: 0}}
	err := p.Add(tx, accounts)
	require.ErrorIs(t, err, ErrBadNonce)
}

func TestAddRejectsInsufficientFunds(t *testing.T) {
	p := New(0, 0, nil)
	tx, from, _ := newTx(t, 1_000, 0, 0)
	accounts := stubAccounts{from: {Balance: 0, NextNonce: 0}}
	err := p.Add(tx, accounts)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAddAcceptsValidSequentialNonces(t *testing.T) {
	p := New(0, 0, nil)
	tx0, from, privFrom := newTx(t, 1_000, 0, 0)
	accounts := stubAccounts{from: {Balance: 100 * chainstate.IPN, NextNonce: 0}}
	require.NoError(t, p.Add(tx0, accounts))

	tx1, _, _ := newTx(t, 1_000, 1, 1)
	tx1.From = from
	tx1.To = tx0.To
	require.NoError(t, tx1.Sign(privFrom))
	require.NoError(t, tx1.ComputeID())
	require.NoError(t, p.Add(tx1, accounts))

	require.Equal(t, 2, p.Size())
}

func TestAddRejectsDuplicate(t *testing.T) {
	p := New(0, 0, nil)
	tx, from, _ := newTx(t, 1_000, 0, 0)
	accounts := stubAccounts{from: {Balance: 100 * chainstate.IPN, NextNonce: 0}}
	require.NoError(t, p.Add(tx, accounts))
	err := p.Add(tx, accounts)
	require.ErrorIs(t, err, ErrAlreadyPresent)
}

func TestAddRejectsOversizedFee(t *testing.T) {
	p := New(0, 0, nil)
	tx, from, _ := newTx(t, chainstate.TxTransfer.FeeCap()+1, 0, 0)
	accounts := stubAccounts{from: {Balance: 100 * chainstate.IPN, NextNonce: 0}}
	err := p.Add(tx, accounts)
	require.ErrorIs(t, err, ErrFeeExceedsCap)
}

func TestSnapshotOrdersByFeeRate(t *testing.T) {
	p := New(0, 0, nil)

	lowFeeTx, lowFrom, _ := newTx(t, 100, 0, 0)
	highFeeTx, highFrom, _ := newTx(t, 900, 0, 1)

	accounts := stubAccounts{
		lowFrom:  {Balance: 100 * chainstate.IPN, NextNonce: 0},
		highFrom: {Balance: 100 * chainstate.IPN, NextNonce: 0},
	}
	require.NoError(t, p.Add(lowFeeTx, accounts))
	require.NoError(t, p.Add(highFeeTx, accounts))

	snap := p.Snapshot(0)
	require.Len(t, snap, 2)
	require.Equal(t, highFeeTx.ID, snap[0].ID, "higher fee_per_byte must be selected first")
	require.Equal(t, lowFeeTx.ID, snap[1].ID)
}

func TestRemoveIsAtomicAndIdempotent(t *testing.T) {
	p := New(0, 0, nil)
	tx, from, _ := newTx(t, 1_000, 0, 0)
	accounts := stubAccounts{from: {Balance: 100 * chainstate.IPN, NextNonce: 0}}
	require.NoError(t, p.Add(tx, accounts))
	require.Equal(t, 1, p.Size())

	p.Remove([][32]byte{tx.ID})
	require.Equal(t, 0, p.Size())

	// Removing again must be a safe no-op.
	p.Remove([][32]byte{tx.ID})
	require.Equal(t, 0, p.Size())
}

func TestSenderCapacityEnforced(t *testing.T) {
	p := New(1, 0, nil)
	tx0, from, privFrom := newTx(t, 1_000, 0, 0)
	accounts := stubAccounts{from: {Balance: 1000 * chainstate.IPN, NextNonce: 0}}
	require.NoError(t, p.Add(tx0, accounts))

	tx1, _, _ := newTx(t, 1_000, 1, 1)
	tx1.From = from
	tx1.To = tx0.To
	require.NoError(t, tx1.Sign(privFrom))
	require.NoError(t, tx1.ComputeID())

	err := p.Add(tx1, accounts)
	require.ErrorIs(t, err, ErrSenderFull)
}

func TestCompareFeeRateCrossMultiplication(t *testing.T) {
	// 10/100 == 100/1000
	require.Equal(t, 0, compareFeeRate(10, 100, 100, 1000))
	// 20/100 > 10/100
	require.Equal(t, 1, compareFeeRate(20, 100, 10, 100))
	require.Equal(t, -1, compareFeeRate(10, 100, 20, 100))
}
