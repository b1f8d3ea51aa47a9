// Package mempool implements the fee-prioritized, nonce-ordered
// transaction pool (C4): the round engine's only source of candidate
// transactions when it opens a round.
package mempool

import (
	"container/heap"
	"crypto/ed25519"
	"errors"
	"sync"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/metrics"
)

const (
	// MaxTxBytes bounds a single transaction's encoded size (§4.4).
	MaxTxBytes = 128 * 1024
	// DefaultMaxPerSender bounds how many pending transactions one sender
	// may occupy at once, preventing a single account from crowding out
	// the pool.
	DefaultMaxPerSender = 64
	// DefaultMaxGlobal bounds total pool occupancy.
	DefaultMaxGlobal = 50_000
)

var (
	ErrTxTooLarge       = errors.New("mempool: transaction exceeds max size")
	ErrInvalidSignature = errors.New("mempool: invalid signature")
	ErrFeeExceedsCap    = errors.New("mempool: fee exceeds per-type cap")
	ErrBadNonce         = errors.New("mempool: nonce does not match expected sequence")
	ErrInsufficientFunds = errors.New("mempool: payer cannot cover amount+fee")
	ErrAlreadyPresent   = errors.New("mempool: transaction already pending")
	ErrSenderFull       = errors.New("mempool: sender pending-transaction limit reached")
	ErrPoolFull         = errors.New("mempool: pool at capacity and candidate does not outrank the weakest entry")
)

// AccountView is the read-only account snapshot the pool consults for
// nonce and solvency checks at admission time. The engine supplies a
// snapshot taken under the same state the round will build from.
type AccountView interface {
	Account(addr chainstate.Address) (chainstate.Account, bool)
}

// entry wraps a pooled transaction with the bookkeeping the priority
// index and sender index need.
type entry struct {
	tx       *chainstate.Transaction
	byteSize int
	heapIdx  int
}

// Pool is the mempool itself: safe for concurrent Add/Remove/Snapshot.
type Pool struct {
	mu sync.RWMutex

	byID   map[[32]byte]*entry
	bySender map[chainstate.Address]map[uint64]*entry
	senderCount map[chainstate.Address]int
	index  priorityIndex

	maxPerSender int
	maxGlobal    int

	metrics *poolMetrics
}

// New constructs an empty Pool. maxPerSender/maxGlobal of 0 fall back to
// the package defaults.
func New(maxPerSender, maxGlobal int, reg metrics.Registry) *Pool {
	if maxPerSender <= 0 {
		maxPerSender = DefaultMaxPerSender
	}
	if maxGlobal <= 0 {
		maxGlobal = DefaultMaxGlobal
	}
	return &Pool{
		byID:         make(map[[32]byte]*entry),
		bySender:     make(map[chainstate.Address]map[uint64]*entry),
		senderCount:  make(map[chainstate.Address]int),
		maxPerSender: maxPerSender,
		maxGlobal:    maxGlobal,
		metrics:      newPoolMetrics(reg),
	}
}

// Add validates and admits tx per §4.4's admission rules. The expected
// nonce is the sender's NextNonce plus the number of transactions the pool
// already holds for tx.From, which Add derives from its own sender index.
func (p *Pool) Add(tx *chainstate.Transaction, accounts AccountView) error {
	size := tx.ByteSize()
	if size > MaxTxBytes {
		return ErrTxTooLarge
	}
	if !tx.FeeWithinCap() {
		return ErrFeeExceedsCap
	}
	ok, err := tx.Verify()
	if err != nil || !ok {
		return ErrInvalidSignature
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[tx.ID]; exists {
		return ErrAlreadyPresent
	}

	account, _ := accounts.Account(tx.From)
	pending := p.senderCount[tx.From]
	expectedNonce := account.NextNonce + uint64(pending)
	if tx.Nonce != expectedNonce {
		return ErrBadNonce
	}
	if !account.CanAfford(tx.Amount, tx.Fee) {
		return ErrInsufficientFunds
	}
	if pending >= p.maxPerSender {
		return ErrSenderFull
	}

	e := &entry{tx: tx, byteSize: size}
	if p.size() >= p.maxGlobal && !p.evictLocked(e) {
		return ErrPoolFull
	}

	p.byID[tx.ID] = e
	if p.bySender[tx.From] == nil {
		p.bySender[tx.From] = make(map[uint64]*entry)
	}
	p.bySender[tx.From][tx.Nonce] = e
	p.senderCount[tx.From]++
	heap.Push(&p.index, e)
	p.metrics.pending.Set(float64(len(p.byID)))
	p.metrics.admitted.Inc()
	return nil
}

// evictLocked makes room for candidate by discarding the lowest
// fee_per_byte entry currently pooled (oldest HashTimer breaks ties), but
// only if candidate outranks it. Returns false, evicting nothing, when
// candidate itself would be the weakest entry — the caller must then
// reject candidate rather than breach maxGlobal.
func (p *Pool) evictLocked(candidate *entry) bool {
	if len(p.index) == 0 {
		return true
	}
	weakest := p.index[0]
	for _, e := range p.index {
		cmp := compareFeeRate(e.tx.Fee, e.byteSize, weakest.tx.Fee, weakest.byteSize)
		if cmp < 0 || (cmp == 0 && e.tx.HashTimer.Less(weakest.tx.HashTimer)) {
			weakest = e
		}
	}
	if !lessPriority(weakest, candidate) {
		return false
	}
	p.removeEntryLocked(weakest)
	p.metrics.evicted.Inc()
	return true
}

// lessPriority reports whether a has strictly lower selection priority
// than b: lower fee_per_byte, or equal fee_per_byte and a later (larger)
// HashTimer.
func lessPriority(a, b *entry) bool {
	cmp := compareFeeRate(a.tx.Fee, a.byteSize, b.tx.Fee, b.byteSize)
	if cmp != 0 {
		return cmp < 0
	}
	return b.tx.HashTimer.Less(a.tx.HashTimer)
}

// compareFeeRate compares feeA/sizeA against feeB/sizeB without floating
// point, via cross multiplication: fee caps and the 128 KiB size bound
// keep both products well inside uint64, so plain multiplication cannot
// overflow.
func compareFeeRate(feeA chainstate.Amount, sizeA int, feeB chainstate.Amount, sizeB int) int {
	lhs := uint64(feeA) * uint64(sizeB)
	rhs := uint64(feeB) * uint64(sizeA)
	switch {
	case lhs > rhs:
		return 1
	case lhs < rhs:
		return -1
	default:
		return 0
	}
}

// Remove atomically drops the given transaction ids, used by the round
// engine once their containing round is finalized.
func (p *Pool) Remove(ids [][32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if e, ok := p.byID[id]; ok {
			p.removeEntryLocked(e)
		}
	}
	p.metrics.pending.Set(float64(len(p.byID)))
}

func (p *Pool) removeEntryLocked(e *entry) {
	delete(p.byID, e.tx.ID)
	if senderTxs, ok := p.bySender[e.tx.From]; ok {
		delete(senderTxs, e.tx.Nonce)
		if len(senderTxs) == 0 {
			delete(p.bySender, e.tx.From)
		}
	}
	p.senderCount[e.tx.From]--
	if p.senderCount[e.tx.From] <= 0 {
		delete(p.senderCount, e.tx.From)
	}
	if e.heapIdx >= 0 && e.heapIdx < len(p.index) && p.index[e.heapIdx] == e {
		heap.Remove(&p.index, e.heapIdx)
	}
}

func (p *Pool) size() int {
	return len(p.byID)
}

// Size reports the current number of pooled transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size()
}

// Snapshot returns up to limit pooled transactions in selection order
// (fee_per_byte desc, HashTimer asc) without mutating the pool — the
// atomic view the round engine opens a round from.
func (p *Pool) Snapshot(limit int) []chainstate.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ordered := make([]*entry, len(p.index))
	copy(ordered, p.index)
	sortByPriority(ordered)

	if limit <= 0 || limit > len(ordered) {
		limit = len(ordered)
	}
	out := make([]chainstate.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = *ordered[i].tx
	}
	return out
}

func sortByPriority(entries []*entry) {
	// Insertion sort is adequate here: Snapshot runs once per round open
	// against a capped pool, never in a hot per-transaction path.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && lessPriority(entries[j-1], entries[j]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// VerifyStandalone re-checks a transaction's signature outside the pool,
// used by block assembly when re-validating a proposal built from a
// snapshot taken slightly earlier.
func VerifyStandalone(tx *chainstate.Transaction) (bool, error) {
	digest, err := tx.SigningDigest()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(tx.From.PublicKey(), digest[:], tx.Signature[:]), nil
}
