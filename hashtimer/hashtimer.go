// Package hashtimer implements the 256-bit HashTimer identifier and the
// IPPAN-Time monotonic microsecond clock (C2). HashTimer is the sole
// ordering primitive consumed by blockdag, mempool, and round: lexicographic
// order over the 32-byte identifier equals (time_prefix, suffix) order, with
// ties broken by suffix, exactly as specified.
package hashtimer

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Context distinguishes the domain an identifier was derived for, folded
// into the BLAKE3 suffix so a tx HashTimer can never collide with a block
// or round HashTimer derived from the same time/payload/nonce.
type Context byte

const (
	ContextTx Context = iota
	ContextBlock
	ContextRound
)

// timePrefixBits is the width of the IPPAN-Time prefix in bits (56 bits,
// i.e. 7 bytes) per §3.
const timePrefixBits = 56

// timePrefixMask masks a uint64 down to the low 56 bits.
const timePrefixMask = (uint64(1) << timePrefixBits) - 1

// HashTimer is the 256-bit identifier: a 56-bit microsecond time prefix
// followed by a 200-bit BLAKE3 suffix, stored big-endian so that byte-wise
// lexicographic comparison of the array equals (time_prefix, suffix) order.
type HashTimer [32]byte

// Derive computes the HashTimer for the given context, time, domain,
// payload, nonce and node id. domain distinguishes sibling objects minted
// at the same instant by the same node for different purposes (e.g. a
// transaction vs. its change output) and is folded into the hash alongside
// everything else the spec lists.
func Derive(ctx Context, timeUs uint64, domain []byte, payload []byte, nonce uint64, nodeID [32]byte) HashTimer {
	h := blake3.New()
	h.Write([]byte{byte(ctx)})

	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], timeUs)
	h.Write(timeBuf[:])

	h.Write(domain)
	h.Write(payload)

	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	h.Write(nonceBuf[:])

	h.Write(nodeID[:])

	sum := h.Sum(nil) // 32 bytes of BLAKE3 output

	var out HashTimer
	prefix := (timeUs & timePrefixMask) << (64 - timePrefixBits) // left-align into the first 7 bytes
	var prefixBuf [8]byte
	binary.BigEndian.PutUint64(prefixBuf[:], prefix)
	copy(out[:7], prefixBuf[:7])
	// The 200-bit (25-byte) suffix is taken from the BLAKE3 digest.
	copy(out[7:], sum[:25])
	return out
}

// TimePrefix extracts the 56-bit microsecond time prefix.
func (h HashTimer) TimePrefix() uint64 {
	var buf [8]byte
	copy(buf[:7], h[:7])
	return binary.BigEndian.Uint64(buf[:]) >> (64 - timePrefixBits)
}

// Suffix returns the 200-bit (25-byte) BLAKE3 suffix used as the signature
// envelope payload and as the tie-breaker in ordering.
func (h HashTimer) Suffix() [25]byte {
	var s [25]byte
	copy(s[:], h[7:])
	return s
}

// Less reports whether h sorts before g under the lexicographic ordering
// contract: (time_prefix, suffix), ties broken by suffix. Because the byte
// layout already places the time prefix in the high bytes, plain byte
// comparison of the two arrays implements this directly.
func (h HashTimer) Less(g HashTimer) bool {
	for i := range h {
		if h[i] != g[i] {
			return h[i] < g[i]
		}
	}
	return false
}

// Compare returns -1, 0, 1 following the Less ordering, for use by sort.Slice
// callers and tie-break logic in blockdag/dgbdt.
func (h HashTimer) Compare(g HashTimer) int {
	switch {
	case h.Less(g):
		return -1
	case g.Less(h):
		return 1
	default:
		return 0
	}
}

// IsZero reports whether h is the zero value (used to detect "no proposal").
func (h HashTimer) IsZero() bool {
	return h == HashTimer{}
}

// String returns the hex form of h.
func (h HashTimer) String() string {
	return hex.EncodeToString(h[:])
}

// withinWindow reports whether timeUs is within [now-past, now+future], the
// clock-skew acceptance window from §4.2: a block or transaction with
// time_prefix outside [now-5s, now+2s] is rejected.
func withinWindow(timeUs, now, past, future uint64) bool {
	if now > past && timeUs < now-past {
		return false
	}
	if timeUs > now+future {
		return false
	}
	return true
}

// AcceptanceWindow is the default [now-5s, now+2s] window from §4.2,
// expressed in microseconds.
const (
	AcceptancePastUs   = 5_000_000
	AcceptanceFutureUs = 2_000_000
)

// InAcceptanceWindow reports whether h's time prefix falls within
// [now-5s, now+2s] of the supplied IPPAN-Time now value.
func (h HashTimer) InAcceptanceWindow(nowUs uint64) bool {
	return withinWindow(h.TimePrefix(), nowUs, AcceptancePastUs, AcceptanceFutureUs)
}
