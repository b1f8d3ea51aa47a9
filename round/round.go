// Package round implements the DLC round engine (C5): the state machine
// that opens a round, selects a primary and shadow verifiers via C6,
// collects proposals and attestations, and finalizes deterministically
// at a fixed deadline with no quorum vote.
package round

import (
	"crypto/ed25519"
	"errors"

	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/hashtimer"
)

// Phase is a round's position in the §4.5 lifecycle.
type Phase int

const (
	PhaseOpened Phase = iota
	PhaseProposing
	PhaseShadowVerifying
	PhaseFinalized
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseOpened:
		return "opened"
	case PhaseProposing:
		return "proposing"
	case PhaseShadowVerifying:
		return "shadow_verifying"
	case PhaseFinalized:
		return "finalized"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// AttestOutcome is a shadow verifier's verdict on one proposed block.
type AttestOutcome byte

const (
	OutcomeConsistent AttestOutcome = iota
	OutcomeInconsistent
)

// Attestation is one shadow verifier's signed report on a proposed block
// (§4.5: "{round, block_id, verifier, outcome, HashTimer, signature}").
type Attestation struct {
	RoundID   uint64
	BlockID   chainstate.BlockID
	Verifier  chainstate.Address
	Outcome   AttestOutcome
	HashTimer hashtimer.HashTimer
	Signature [ed25519.SignatureSize]byte
}

// signingBytes is the buffer the verifier signs: every field but the
// signature itself, in declared order.
func (a *Attestation) signingBytes() []byte {
	buf := make([]byte, 0, 8+32+32+1+32)
	var roundBuf [8]byte
	for i := 0; i < 8; i++ {
		roundBuf[i] = byte(a.RoundID >> (56 - 8*i))
	}
	buf = append(buf, roundBuf[:]...)
	buf = append(buf, a.BlockID[:]...)
	buf = append(buf, a.Verifier[:]...)
	buf = append(buf, byte(a.Outcome))
	buf = append(buf, a.HashTimer[:]...)
	return buf
}

// Sign signs the attestation with the verifier's private key.
func (a *Attestation) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, a.signingBytes())
	copy(a.Signature[:], sig)
}

// Verify checks the attestation's signature against its declared verifier.
func (a *Attestation) Verify() bool {
	return ed25519.Verify(a.Verifier.PublicKey(), a.signingBytes(), a.Signature[:])
}

// ErrAlreadyFinalized and the errors below guard the state machine
// against out-of-order or unauthorized calls by the engine.
var (
	ErrAlreadyFinalized         = errors.New("round: already finalized or aborted")
	ErrNotInProposingPhase      = errors.New("round: not accepting proposals")
	ErrNotInShadowVerifyPhase   = errors.New("round: not accepting attestations")
	ErrProposerMismatch         = errors.New("round: proposal signed by a non-selected validator")
	ErrAttesterNotSelected      = errors.New("round: attestation signed by a non-selected shadow")
	ErrInvalidAttestationSig    = errors.New("round: attestation signature invalid")
)

// EquivocationKind classifies the contradictory behavior an equivocation
// proof documents, each carrying its own slash bps per §4.5.
type EquivocationKind byte

const (
	EquivocationDoubleProposal EquivocationKind = iota
	EquivocationInvalidBlockSignature
	EquivocationShadowDissent
)

// SlashBps returns the basis-point penalty §4.5 assigns to this kind of
// equivocation.
func (k EquivocationKind) SlashBps() uint32 {
	switch k {
	case EquivocationDoubleProposal:
		return 5_000 // 50%
	case EquivocationInvalidBlockSignature:
		return 1_000 // 10%
	case EquivocationShadowDissent:
		return 100 // 1%
	default:
		return 0
	}
}

// EquivocationProof records one validator's contradictory signed behavior
// for a round, carried into finalization for slashing.
type EquivocationProof struct {
	RoundID   uint64
	Validator chainstate.Address
	Kind      EquivocationKind
	// Evidence is the set of conflicting block ids (double-proposal), the
	// canonical tip the shadow dissented from (shadow dissent), or empty
	// (invalid block signature), kept minimal
	// since the full signed objects are already in the DAG/attestation
	// log and addressable by id.
	Evidence []chainstate.BlockID
}

// Record is the durable outcome of one finalized (or aborted) round,
// the unit C9 storage persists and recovery replays on startup.
type Record struct {
	RoundID           uint64
	Phase             Phase
	OpenedAtUs        uint64
	FinalizedAtUs     uint64
	Primary           chainstate.Address
	Shadows           []chainstate.Address
	CanonicalBlock    chainstate.BlockID
	ConsistentShadows []chainstate.Address
	Dissenting        []chainstate.Address
	Equivocations     []EquivocationProof
	LivenessPenalty   bool // true when the round closed with zero valid proposals
	SelectorFallback  bool
}
