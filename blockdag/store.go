// Package blockdag implements the content-addressed block graph and the
// deterministic fork-choice rule that sits beneath the round engine.
package blockdag

import (
	"github.com/ippan/core/chainstate"
)

// Batch groups writes that land atomically on Write. Graph.CommitRound
// uses one for the round->canonical_tip entry only; block and parent-index
// entries are written one by one with Store.Put when a block is inserted,
// outside any batch.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Size() int
	Write() error
	Reset()
}

// Store is the narrow persistence surface blockdag needs from C9. Keys are
// one prefix byte followed by the raw id: 'b' + 32-byte block id, 'p' +
// 32-byte block id, 'r' + 8-byte big-endian round id.
type Store interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

const (
	prefixBlock   = 'b'
	prefixParents = 'p'
	prefixRound   = 'r'
)

func blockKey(id chainstate.BlockID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = prefixBlock
	copy(k[1:], id[:])
	return k
}

func parentsKey(id chainstate.BlockID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = prefixParents
	copy(k[1:], id[:])
	return k
}

func roundKey(round uint64) []byte {
	k := make([]byte, 9)
	k[0] = prefixRound
	for i := 0; i < 8; i++ {
		k[1+i] = byte(round >> (56 - 8*i))
	}
	return k
}
