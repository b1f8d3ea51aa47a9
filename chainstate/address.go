// Package chainstate holds the shared consensus-visible data model (§3):
// Address, Amount, Account, Transaction, Block and ChainState, plus their
// canonical wire encodings (§6). It generalizes the teacher's types/block.go
// and types/types.go, which were built around an externally injected
// ids.ID; here the identifiers are the spec's own 32-byte Ed25519 keys and
// BLAKE3 hashes, owned by this module rather than borrowed from a sibling
// repo this codebase does not contain.
package chainstate

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ippan/core/utils/formatting"
)

// addressPrefix is the canonical string-form prefix for an Address, per §3.
const addressPrefix = "i"

// Address is a 32-byte Ed25519 public key.
type Address [ed25519.PublicKeySize]byte

// AddressFromPublicKey copies an ed25519.PublicKey into an Address.
func AddressFromPublicKey(pub ed25519.PublicKey) (Address, error) {
	var a Address
	if len(pub) != len(a) {
		return a, fmt.Errorf("chainstate: public key must be %d bytes, got %d", len(a), len(pub))
	}
	copy(a[:], pub)
	return a, nil
}

// String returns the canonical base58check form with the "i" prefix.
func (a Address) String() string {
	return formatting.EncodeBase58Check(addressPrefix, a[:])
}

// Hex returns the hex interchange form (accepted, per §3, alongside base58check).
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// ParseAddress accepts either the canonical base58check "i..." form or a
// bare/"0x"-prefixed hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	switch {
	case strings.HasPrefix(s, addressPrefix):
		raw, err := formatting.DecodeBase58Check(addressPrefix, s)
		if err != nil {
			return a, err
		}
		if len(raw) != len(a) {
			return a, fmt.Errorf("chainstate: decoded address has %d bytes, want %d", len(raw), len(a))
		}
		copy(a[:], raw)
		return a, nil
	default:
		raw, err := formatting.Decode(formatting.HexNC, strings.TrimPrefix(s, "0x"))
		if err != nil {
			return a, fmt.Errorf("chainstate: invalid address %q: %w", s, err)
		}
		if len(raw) != len(a) {
			return a, fmt.Errorf("chainstate: decoded address has %d bytes, want %d", len(raw), len(a))
		}
		copy(a[:], raw)
		return a, nil
	}
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// PublicKey views a as an ed25519.PublicKey for verification.
func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

// Compare implements the ordering used by set/sort callers.
func (a Address) Compare(b Address) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
