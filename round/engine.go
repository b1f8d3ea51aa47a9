package round

import (
	"crypto/ed25519"
	"errors"
	"sync"

	"github.com/ippan/core/bond"
	"github.com/ippan/core/blockdag"
	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/config"
	"github.com/ippan/core/dgbdt"
	"github.com/ippan/core/hashtimer"
	"github.com/ippan/core/log"
	"github.com/ippan/core/mempool"
	"github.com/ippan/core/metrics"
)

// RewardEngine is the narrow slice of C8 the round engine depends on at
// finalization: distribute the round's emission and fees across the
// primary, consistent shadows and the network dividend pool, recording
// whether this round's selection ran the D-GBDT model or its legacy
// fallback and which model hash was active (§4.6, §9 scenario 5:
// "Committed state records selector=fallback").
type RewardEngine interface {
	DistributeRound(round uint64, block *chainstate.Block, primary chainstate.Address, consistentShadows []chainstate.Address, fallbackUsed bool, modelHash [32]byte) error
}

// RecordStore persists finalized/aborted round records for C9 storage and
// startup recovery.
type RecordStore interface {
	SaveRound(r *Record) error
	LoadRound(round uint64) (*Record, bool, error)
}

// SlashRecorder is the narrow slice of C8 equivocation slashing depends on:
// apply a bond slash and fold its proceeds into the cumulative
// ChainState.TotalSlashed total in the same atomic update emission.Engine
// already performs for round rewards (§3, §4.8 item 4). Finalize calls
// this instead of the bond ledger directly so every round-applied slash
// updates ChainState through the one path that keeps it in sync with the
// bond ledger's treasury.
type SlashRecorder interface {
	ApplySlash(validator chainstate.Address, bps uint32) (chainstate.Amount, error)
}

var (
	ErrRoundNotOpen       = errors.New("round: no round currently open")
	ErrDeadlineNotReached = errors.New("round: finality deadline not yet reached")
	ErrNoEligibleValidators = errors.New("round: no validators meet the bond floor")
)

// proposal is one accepted candidate block plus its creator, kept
// regardless of whether the creator was the selected primary so that
// double-proposals by the primary and any other competing block routed
// through the DAG are both visible to fork choice and equivocation
// detection.
type proposal struct {
	block   *chainstate.Block
	creator chainstate.Address
}

// roundState is the engine's working state for the round currently open.
type roundState struct {
	id            uint64
	openedAtUs    uint64
	deadlineUs    uint64
	primary       chainstate.Address
	shadows       []chainstate.Address
	fallbackUsed  bool
	mempoolSnapshot []chainstate.Transaction

	proposals          map[chainstate.BlockID]proposal
	primaryProposalIDs []chainstate.BlockID // tracks double-proposal by the primary

	attestations map[chainstate.Address]*Attestation
	equivocations []EquivocationProof
}

// Engine drives one node's view of the round lifecycle (§4.5): Open,
// accept proposals and attestations, then Finalize deterministically at
// the temporal deadline. One Engine instance runs per node; whether this
// node acts as primary for a given round is just the outcome of Open's
// selection matching localValidator.
type Engine struct {
	mu sync.Mutex

	dag     *blockdag.Graph
	pool    *mempool.Pool
	bonds   *bond.Ledger
	telemetry dgbdt.MetricsProvider
	rewards RewardEngine
	slasher SlashRecorder
	records RecordStore

	model     *dgbdt.Model
	modelHash [32]byte

	clock hashtimer.Clock
	cfg   *config.Config
	log   log.Logger
	metrics *engineMetrics

	nodeID         [32]byte
	localValidator chainstate.Address
	localPriv      ed25519.PrivateKey

	current  *roundState
	safeMode *AbortRecord
}

// New constructs an Engine. model may be nil, in which case every round
// uses the legacy fairness fallback until a model is registered.
func New(
	dag *blockdag.Graph,
	pool *mempool.Pool,
	bonds *bond.Ledger,
	telemetry dgbdt.MetricsProvider,
	rewards RewardEngine,
	slasher SlashRecorder,
	records RecordStore,
	clock hashtimer.Clock,
	cfg *config.Config,
	logger log.Logger,
	reg metrics.Registry,
	nodeID [32]byte,
	localValidator chainstate.Address,
	localPriv ed25519.PrivateKey,
) (*Engine, error) {
	if logger == nil {
		logger = log.NoOp()
	}
	m, err := newEngineMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		dag: dag, pool: pool, bonds: bonds, telemetry: telemetry,
		rewards: rewards, slasher: slasher, records: records, clock: clock, cfg: cfg,
		log: logger, metrics: m, nodeID: nodeID,
		localValidator: localValidator, localPriv: localPriv,
	}, nil
}

// SetModel installs (or replaces) the active D-GBDT model, recomputing
// its content hash for §4.6's selection seed and LoadModel verification.
func (e *Engine) SetModel(model *dgbdt.Model, hash [32]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = model
	e.modelHash = hash
}

// Open begins roundID: snapshots the mempool, enumerates eligible
// validators, and draws the primary/shadow selection deterministically
// from (roundID, eligible set, model hash, stateRoot).
func (e *Engine) Open(roundID uint64, stateRoot [32]byte) (*roundState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.safeMode != nil {
		return nil, ErrInSafeMode
	}

	nowUs := e.clock.NowUs()
	eligible := e.bonds.EligibleSet().List()
	if len(eligible) == 0 {
		return nil, ErrNoEligibleValidators
	}

	sel, err := dgbdt.Select(dgbdt.SelectionInput{
		Eligible:    eligible,
		Metrics:     e.telemetry,
		Model:       e.model,
		RoundID:     roundID,
		ModelHash:   e.modelHash,
		StateRoot:   stateRoot,
		ShadowCount: e.cfg.ShadowVerifierCount,
	})
	if err != nil {
		return nil, err
	}

	shadows := make([]chainstate.Address, len(sel.Shadows))
	for i, id := range sel.Shadows {
		shadows[i] = dgbdt.AddressFromID(id)
	}

	rs := &roundState{
		id:              roundID,
		openedAtUs:      nowUs,
		deadlineUs:      nowUs + uint64(e.cfg.TemporalFinalityMs)*1_000,
		primary:         dgbdt.AddressFromID(sel.Primary),
		shadows:         shadows,
		fallbackUsed:    sel.FallbackUsed,
		mempoolSnapshot: e.pool.Snapshot(e.cfg.MaxTxsPerBlock),
		proposals:       make(map[chainstate.BlockID]proposal),
		attestations:    make(map[chainstate.Address]*Attestation),
	}
	e.current = rs
	e.metrics.opened.Inc()
	e.log.Info("round opened",
		log.Field64("round", int64(roundID)),
		log.FieldStr("primary", rs.primary.String()),
		log.FieldBool("fallback", rs.fallbackUsed),
	)
	return rs, nil
}

// IsLocalPrimary reports whether this node was selected primary for the
// currently open round.
func (e *Engine) IsLocalPrimary() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.primary == e.localValidator
}

// AssembleProposal builds and signs a block from the round's mempool
// snapshot. Only meaningful when IsLocalPrimary is true; the engine does
// not enforce that here since a byzantine node is free to call it
// anyway — SubmitProposal is where non-primary proposals get rejected.
func (e *Engine) AssembleProposal(parents []chainstate.BlockID) (*chainstate.Block, error) {
	e.mu.Lock()
	rs := e.current
	e.mu.Unlock()
	if rs == nil {
		return nil, ErrRoundNotOpen
	}

	b := &chainstate.Block{
		Header: chainstate.Header{
			Version:      1,
			Parents:      parents,
			Creator:      e.localValidator,
			RoundID:      rs.id,
			MedianTimeUs: e.clock.NowUs(),
		},
		Transactions: rs.mempoolSnapshot,
	}
	b.SetMerkleRoot()
	b.Header.HashTimer = hashtimer.Derive(hashtimer.ContextBlock, e.clock.NowUs(), []byte("block"), b.Header.MerkleRoot[:], rs.id, e.nodeID)

	if err := b.Header.Sign(e.localPriv); err != nil {
		return nil, err
	}
	return b, nil
}

// SubmitProposal admits a proposed block into the round. Proposals from
// validators other than the selected primary are rejected outright;
// a second, differing block from the primary itself is accepted (it
// still competes in fork choice) and recorded as a double-proposal
// equivocation.
func (e *Engine) SubmitProposal(b *chainstate.Block) (chainstate.BlockID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.current
	if rs == nil {
		return chainstate.BlockID{}, ErrRoundNotOpen
	}
	if rs.id != b.Header.RoundID {
		return chainstate.BlockID{}, ErrNotInProposingPhase
	}
	if b.Header.Creator != rs.primary {
		return chainstate.BlockID{}, ErrProposerMismatch
	}

	ok, err := b.Header.VerifySignature()
	if err != nil {
		return chainstate.BlockID{}, err
	}
	if !ok {
		e.recordEquivocationLocked(rs, rs.primary, EquivocationInvalidBlockSignature, nil)
		return chainstate.BlockID{}, errors.New("round: block signature invalid")
	}

	id, err := e.dag.InsertBlock(b)
	if err != nil {
		return id, err
	}
	rs.proposals[id] = proposal{block: b, creator: b.Header.Creator}
	rs.primaryProposalIDs = append(rs.primaryProposalIDs, id)
	if len(rs.primaryProposalIDs) > 1 {
		e.recordEquivocationLocked(rs, rs.primary, EquivocationDoubleProposal, rs.primaryProposalIDs)
	}
	return id, nil
}

// SubmitAttestation admits a shadow's verdict on a proposed block.
func (e *Engine) SubmitAttestation(a *Attestation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs := e.current
	if rs == nil {
		return ErrRoundNotOpen
	}
	if rs.id != a.RoundID {
		return ErrNotInShadowVerifyPhase
	}
	if !isSelectedShadow(rs.shadows, a.Verifier) {
		return ErrAttesterNotSelected
	}
	if !a.Verify() {
		return ErrInvalidAttestationSig
	}
	rs.attestations[a.Verifier] = a
	return nil
}

func isSelectedShadow(shadows []chainstate.Address, addr chainstate.Address) bool {
	for _, s := range shadows {
		if s == addr {
			return true
		}
	}
	return false
}

func (e *Engine) recordEquivocationLocked(rs *roundState, validator chainstate.Address, kind EquivocationKind, evidence []chainstate.BlockID) {
	rs.equivocations = append(rs.equivocations, EquivocationProof{
		RoundID: rs.id, Validator: validator, Kind: kind, Evidence: append([]chainstate.BlockID(nil), evidence...),
	})
	e.metrics.equivocations.Inc()
}
