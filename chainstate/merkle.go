package chainstate

import "github.com/zeebo/blake3"

// ComputeMerkleRoot builds the BLAKE3 binary merkle tree over leaf (here,
// transaction id) hashes in listed order, per §3's block invariant. An odd
// node at any level is promoted by duplicating it, the common convention
// also used by the pack's UTXO-chain teachers (EXCCoin/monetarium merkle
// blocks). An empty transaction list has the all-zero root.
func ComputeMerkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := blake3.New()
			h.Write(level[i][:])
			h.Write(level[i+1][:])
			var sum [32]byte
			copy(sum[:], h.Sum(nil))
			next[i/2] = sum
		}
		level = next
	}
	return level[0]
}
