package chainstate

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressBase58CheckRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	s := addr.String()
	require.True(t, strings.HasPrefix(s, "i"))

	parsed, err := ParseAddress(s)
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestAddressHexInterchange(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	parsed, err := ParseAddress(addr.Hex())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestAddressChecksumRejectsCorruption(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr, err := AddressFromPublicKey(pub)
	require.NoError(t, err)

	s := []byte(addr.String())
	// Flip a character in the base58 body (not the "i" prefix).
	if s[1] == 'a' {
		s[1] = 'b'
	} else {
		s[1] = 'a'
	}
	_, err = ParseAddress(string(s))
	require.Error(t, err)
}
