package chainstate

import (
	"crypto/ed25519"
	"fmt"

	"github.com/ippan/core/hashtimer"
	"github.com/ippan/core/utils/wrappers"
	"github.com/zeebo/blake3"
)

// TxType tags the kind of operation a transaction performs, used to look up
// its fee cap (§6).
type TxType byte

const (
	TxTransfer TxType = iota
	TxAICall
	TxContractDeploy
	TxContractCall
	TxGovernance
	TxValidatorOp
)

// FeeCap returns the per-type fee ceiling in µIPN (§6), enforced at mempool
// admission and block assembly.
func (t TxType) FeeCap() Amount {
	switch t {
	case TxTransfer:
		return 1_000
	case TxAICall:
		return 100
	case TxContractDeploy:
		return 100_000
	case TxContractCall:
		return 10_000
	case TxGovernance:
		return 10_000
	case TxValidatorOp:
		return 10_000
	default:
		return 0
	}
}

func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "transfer"
	case TxAICall:
		return "ai_call"
	case TxContractDeploy:
		return "contract_deploy"
	case TxContractCall:
		return "contract_call"
	case TxGovernance:
		return "governance"
	case TxValidatorOp:
		return "validator_op"
	default:
		return "unknown"
	}
}

// Visibility tags a transaction's memo/payload disclosure policy.
type Visibility byte

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
)

// MaxMemoLen is the memo size ceiling from §3.
const MaxMemoLen = 256

// TxVersion is the current canonical wire version.
const TxVersion = 1

// Transaction is the data-model record from §3. ID is a content address
// derived from the canonical bytes plus signature, distinct from HashTimer
// (which carries the issuance timestamp and anti-collision nonce, not an
// identity over the final signed bytes).
type Transaction struct {
	ID         [32]byte
	Version    byte
	Type       TxType
	From       Address
	To         Address
	Amount     Amount
	Nonce      uint64
	Fee        Amount
	Memo       []byte
	Visibility Visibility
	HashTimer  hashtimer.HashTimer
	Signature  [ed25519.SignatureSize]byte
}

// ErrMemoTooLong is returned when a memo exceeds MaxMemoLen.
var ErrMemoTooLong = fmt.Errorf("chainstate: memo exceeds %d bytes", MaxMemoLen)

// ErrFeeExceedsCap is returned when Fee exceeds TxType.FeeCap().
var ErrFeeExceedsCap = fmt.Errorf("chainstate: fee exceeds per-type cap")

// CanonicalBytes builds the exact signing buffer from §6: version, type,
// from, to, amount, nonce, fee, memo length ‖ memo, HashTimer.suffix.
func (t *Transaction) CanonicalBytes() ([]byte, error) {
	if len(t.Memo) > MaxMemoLen {
		return nil, ErrMemoTooLong
	}
	p := &wrappers.Packer{Bytes: make([]byte, 0, 2+32+32+8+8+8+2+len(t.Memo)+25)}
	p.PackByte(t.Version)
	p.PackByte(byte(t.Type))
	p.PackBytes(t.From[:])
	p.PackBytes(t.To[:])
	p.PackLong(uint64(t.Amount))
	p.PackLong(t.Nonce)
	p.PackLong(uint64(t.Fee))
	p.PackShort(uint16(len(t.Memo)))
	p.PackBytes(t.Memo)
	suffix := t.HashTimer.Suffix()
	p.PackBytes(suffix[:])
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Bytes, nil
}

// SigningDigest is BLAKE3(CanonicalBytes()), the value signed and verified.
func (t *Transaction) SigningDigest() ([32]byte, error) {
	buf, err := t.CanonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(buf), nil
}

// Sign signs t with priv, setting Signature. ComputeID must be called
// afterwards to fix the content-addressed ID.
func (t *Transaction) Sign(priv ed25519.PrivateKey) error {
	digest, err := t.SigningDigest()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, digest[:])
	copy(t.Signature[:], sig)
	return nil
}

// Verify checks the signature against t.From, per the invariant in §3:
// "signature verifies under from".
func (t *Transaction) Verify() (bool, error) {
	digest, err := t.SigningDigest()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(t.From.PublicKey(), digest[:], t.Signature[:]), nil
}

// ComputeID derives the content-addressed transaction ID from the canonical
// bytes and the final signature, then stores it on t.
func (t *Transaction) ComputeID() error {
	buf, err := t.CanonicalBytes()
	if err != nil {
		return err
	}
	buf = append(buf, t.Signature[:]...)
	t.ID = blake3.Sum256(buf)
	return nil
}

// ByteSize approximates the declared wire size used for the mempool's
// 128 KiB per-transaction admission cap (§4.4/§4.9).
func (t *Transaction) ByteSize() int {
	return 2 + 32 + 32 + 8 + 8 + 8 + 2 + len(t.Memo) + 25 + ed25519.SignatureSize
}

// FeeWithinCap reports whether t.Fee respects its type's fee cap.
func (t *Transaction) FeeWithinCap() bool {
	return t.Fee <= t.Type.FeeCap()
}

