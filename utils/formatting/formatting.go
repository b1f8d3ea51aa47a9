// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package formatting

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Encoding specifies the format of the string representation
type Encoding uint8

const (
	// HexC is hex with "0x" prefix
	HexC Encoding = iota
	// HexNC is hex without "0x" prefix
	HexNC
	// CB58 is the CB58 encoding (not implemented here)
	CB58
)

// checksumLen is the length, in bytes, of the BLAKE3-derived checksum
// appended before base58-encoding (mirrors Bitcoin-style base58check, using
// BLAKE3 instead of double-SHA256 since BLAKE3 is already the project's
// sole hash primitive).
const checksumLen = 4

// EncodeBase58Check encodes payload as prefix + base58(payload ‖ checksum),
// where checksum is the first 4 bytes of BLAKE3(payload). Used for IPPAN's
// canonical address string form (the "i" prefix, §3).
func EncodeBase58Check(prefix string, payload []byte) string {
	sum := blake3.Sum256(payload)
	buf := make([]byte, 0, len(payload)+checksumLen)
	buf = append(buf, payload...)
	buf = append(buf, sum[:checksumLen]...)
	return prefix + base58.Encode(buf)
}

// DecodeBase58Check reverses EncodeBase58Check, verifying the checksum.
func DecodeBase58Check(prefix, s string) ([]byte, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("formatting: missing %q prefix", prefix)
	}
	raw, err := base58.Decode(strings.TrimPrefix(s, prefix))
	if err != nil {
		return nil, fmt.Errorf("formatting: base58 decode: %w", err)
	}
	if len(raw) < checksumLen {
		return nil, fmt.Errorf("formatting: payload too short for checksum")
	}
	payload, wantSum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	gotSum := blake3.Sum256(payload)
	if string(gotSum[:checksumLen]) != string(wantSum) {
		return nil, fmt.Errorf("formatting: checksum mismatch")
	}
	return payload, nil
}

// Encode encodes bytes to string with specified encoding
func Encode(encoding Encoding, bytes []byte) (string, error) {
	switch encoding {
	case HexC:
		return "0x" + hex.EncodeToString(bytes), nil
	case HexNC:
		return hex.EncodeToString(bytes), nil
	default:
		return "", fmt.Errorf("unknown encoding format: %d", encoding)
	}
}

// Decode decodes string to bytes with specified encoding
func Decode(encoding Encoding, str string) ([]byte, error) {
	switch encoding {
	case HexC:
		if len(str) < 2 || str[:2] != "0x" {
			return nil, fmt.Errorf("hex string must start with 0x")
		}
		return hex.DecodeString(str[2:])
	case HexNC:
		return hex.DecodeString(str)
	default:
		return nil, fmt.Errorf("unknown encoding format: %d", encoding)
	}
}

// IntFormat formats an integer for display
func IntFormat(v int) string {
	return strconv.Itoa(v)
}

// PrefixedStringer is an interface for types that can be formatted with a prefix
type PrefixedStringer interface {
	PrefixedString(prefix string) string
}