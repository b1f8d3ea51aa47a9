package chainstate

import (
	"crypto/ed25519"
	"fmt"

	"github.com/ippan/core/hashtimer"
	"github.com/ippan/core/utils/wrappers"
	"github.com/zeebo/blake3"
)

// MinParents and MaxParents bound the number of parent edges a block may
// declare (§3: "parent_ids (1..8)").
const (
	MinParents = 1
	MaxParents = 8
)

// BlockID is the content address of a block (BLAKE3 of its fully encoded
// header, including the creator's signature).
type BlockID [32]byte

func (id BlockID) String() string {
	return hashtimer.HashTimer(id).String()
}

// Header is the block header, fields in the exact order of the §6 wire
// form.
type Header struct {
	Version          uint16
	Parents          []BlockID // 1..8
	Creator          Address
	RoundID          uint64
	MedianTimeUs     uint64
	MerkleRoot       [32]byte
	HashTimer        hashtimer.HashTimer
	CreatorSignature [ed25519.SignatureSize]byte
}

// Block pairs a header with its ordered transaction list (§3).
type Block struct {
	Header       Header
	Transactions []Transaction
}

var (
	// ErrTooFewParents / ErrTooManyParents enforce the 1..8 parent bound.
	ErrTooFewParents  = fmt.Errorf("chainstate: block must declare at least %d parent", MinParents)
	ErrTooManyParents = fmt.Errorf("chainstate: block may declare at most %d parents", MaxParents)
	// ErrMerkleMismatch flags a block whose declared merkle root does not
	// match its transaction list — a permanent reject per §4.3.
	ErrMerkleMismatch = fmt.Errorf("chainstate: merkle root mismatch")
)

// signingBytes writes every header field up to (but not including) the
// creator signature — the buffer that is signed.
func (h *Header) signingBytes() ([]byte, error) {
	if len(h.Parents) < MinParents {
		return nil, ErrTooFewParents
	}
	if len(h.Parents) > MaxParents {
		return nil, ErrTooManyParents
	}
	p := &wrappers.Packer{}
	p.PackShort(h.Version)
	p.PackByte(byte(len(h.Parents)))
	for _, parent := range h.Parents {
		p.PackBytes(parent[:])
	}
	p.PackBytes(h.Creator[:])
	p.PackLong(h.RoundID)
	p.PackLong(h.MedianTimeUs)
	p.PackBytes(h.MerkleRoot[:])
	p.PackBytes(h.HashTimer[:])
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Bytes, nil
}

// SigningDigest is BLAKE3 over the header's signing bytes.
func (h *Header) SigningDigest() ([32]byte, error) {
	buf, err := h.signingBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(buf), nil
}

// Sign signs the header with the creator's private key.
func (h *Header) Sign(priv ed25519.PrivateKey) error {
	digest, err := h.SigningDigest()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(priv, digest[:])
	copy(h.CreatorSignature[:], sig)
	return nil
}

// VerifySignature checks CreatorSignature against Creator.
func (h *Header) VerifySignature() (bool, error) {
	digest, err := h.SigningDigest()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(h.Creator.PublicKey(), digest[:], h.CreatorSignature[:]), nil
}

// ID computes the block's content address: BLAKE3 over the signing bytes
// plus the creator's signature, so two blocks with identical fields but
// different signatures (impossible for a correct signer, but relevant for
// equivocation bookkeeping of re-signed variants) never collide.
func (h *Header) ID() (BlockID, error) {
	buf, err := h.signingBytes()
	if err != nil {
		return BlockID{}, err
	}
	buf = append(buf, h.CreatorSignature[:]...)
	return BlockID(blake3.Sum256(buf)), nil
}

// VerifyMerkleRoot recomputes the merkle root over b.Transactions and
// compares it against the header's declared root.
func (b *Block) VerifyMerkleRoot() error {
	leaves := make([][32]byte, len(b.Transactions))
	for i := range b.Transactions {
		leaves[i] = b.Transactions[i].ID
	}
	got := ComputeMerkleRoot(leaves)
	if got != b.Header.MerkleRoot {
		return ErrMerkleMismatch
	}
	return nil
}

// SetMerkleRoot computes and stores the merkle root over the block's
// current transaction list.
func (b *Block) SetMerkleRoot() {
	leaves := make([][32]byte, len(b.Transactions))
	for i := range b.Transactions {
		leaves[i] = b.Transactions[i].ID
	}
	b.Header.MerkleRoot = ComputeMerkleRoot(leaves)
}

// EncodeWire serializes the block per §6: header fields in fixed order,
// followed by a length-prefixed transaction list.
func (b *Block) EncodeWire() ([]byte, error) {
	headerBytes, err := b.Header.signingBytes()
	if err != nil {
		return nil, err
	}
	p := &wrappers.Packer{Bytes: append([]byte(nil), headerBytes...)}
	p.PackBytes(b.Header.CreatorSignature[:])
	p.PackInt(uint32(len(b.Transactions)))
	for i := range b.Transactions {
		txBytes, err := encodeFullTx(&b.Transactions[i])
		if err != nil {
			return nil, err
		}
		p.PackInt(uint32(len(txBytes)))
		p.PackBytes(txBytes)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Bytes, nil
}

// encodeFullTx encodes a transaction's canonical bytes plus its signature
// and id for storage/gossip (distinct from CanonicalBytes, which excludes
// the signature since that is what gets signed).
func encodeFullTx(t *Transaction) ([]byte, error) {
	canon, err := t.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	p := &wrappers.Packer{Bytes: append([]byte(nil), canon...)}
	p.PackBytes(t.Signature[:])
	p.PackBytes(t.ID[:])
	p.PackBytes(t.HashTimer[:])
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Bytes, nil
}

// DecodeWire reverses EncodeWire.
func DecodeWire(buf []byte) (*Block, error) {
	u := &wrappers.Unpacker{Bytes: buf}
	var h Header
	h.Version = u.UnpackShort()
	parentCount := int(u.UnpackByte())
	if parentCount < MinParents {
		return nil, ErrTooFewParents
	}
	if parentCount > MaxParents {
		return nil, ErrTooManyParents
	}
	h.Parents = make([]BlockID, parentCount)
	for i := range h.Parents {
		copy(h.Parents[i][:], u.UnpackBytes(32))
	}
	copy(h.Creator[:], u.UnpackBytes(32))
	h.RoundID = u.UnpackLong()
	h.MedianTimeUs = u.UnpackLong()
	copy(h.MerkleRoot[:], u.UnpackBytes(32))
	copy(h.HashTimer[:], u.UnpackBytes(32))
	copy(h.CreatorSignature[:], u.UnpackBytes(ed25519.SignatureSize))

	txCount := int(u.UnpackInt())
	txs := make([]Transaction, txCount)
	for i := 0; i < txCount; i++ {
		n := int(u.UnpackInt())
		txBuf := u.UnpackBytes(n)
		tx, err := decodeFullTx(txBuf)
		if err != nil {
			return nil, err
		}
		txs[i] = *tx
	}
	if u.Err != nil {
		return nil, u.Err
	}
	return &Block{Header: h, Transactions: txs}, nil
}

func decodeFullTx(buf []byte) (*Transaction, error) {
	u := &wrappers.Unpacker{Bytes: buf}
	var t Transaction
	t.Version = u.UnpackByte()
	t.Type = TxType(u.UnpackByte())
	copy(t.From[:], u.UnpackBytes(32))
	copy(t.To[:], u.UnpackBytes(32))
	t.Amount = Amount(u.UnpackLong())
	t.Nonce = u.UnpackLong()
	t.Fee = Amount(u.UnpackLong())
	memoLen := int(u.UnpackShort())
	t.Memo = u.UnpackBytes(memoLen)
	suffix := u.UnpackBytes(25)
	copy(t.Signature[:], u.UnpackBytes(ed25519.SignatureSize))
	copy(t.ID[:], u.UnpackBytes(32))
	copy(t.HashTimer[:], u.UnpackBytes(32))
	_ = suffix // redundant with HashTimer's own suffix bytes, kept for wire-format symmetry with §6
	if u.Err != nil {
		return nil, u.Err
	}
	return &t, nil
}
