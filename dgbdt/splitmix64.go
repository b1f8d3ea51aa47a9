package dgbdt

import "github.com/zeebo/blake3"

// SplitMix64 is the deterministic integer RNG §4.6 specifies for
// weighted verifier sampling: seeded once, then advanced by repeated
// calls to Next, producing the same stream on every architecture.
type SplitMix64 struct {
	state uint64
}

// NewSplitMix64Seed derives the 64-bit seed from round_id ‖ model_hash ‖
// canonical_state_root via BLAKE3, folding the 32-byte digest down to a
// uint64 by XORing its four 8-byte words.
func NewSplitMix64Seed(roundID uint64, modelHash [32]byte, stateRoot [32]byte) uint64 {
	h := blake3.New()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(roundID >> (56 - 8*i))
	}
	h.Write(buf[:])
	h.Write(modelHash[:])
	h.Write(stateRoot[:])
	sum := h.Sum(nil)

	var seed uint64
	for i := 0; i < 4; i++ {
		var word uint64
		for b := 0; b < 8; b++ {
			word = word<<8 | uint64(sum[i*8+b])
		}
		seed ^= word
	}
	return seed
}

// NewSplitMix64 constructs a generator from an explicit seed.
func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// Next advances the generator and returns the next 64-bit output.
func (s *SplitMix64) Next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Uint64n returns a value in [0, n) by rejection sampling against the
// largest multiple of n that fits in 64 bits, avoiding modulo bias.
func (s *SplitMix64) Uint64n(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := s.Next()
		if v < limit {
			return v % n
		}
	}
}
