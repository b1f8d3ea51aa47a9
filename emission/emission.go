// Package emission implements DAG-Fair emission, fee recycling and reward
// distribution (C8): the per-round reward issuance, supply-cap enforcement,
// and slashing-proceeds accounting that close the loop the round engine
// opens at finalization.
package emission

import (
	"errors"
	"sync"

	"github.com/ippan/core/bond"
	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/config"
	"github.com/ippan/core/fixedpoint"
	"github.com/ippan/core/log"
	"github.com/ippan/core/metrics"
)

// GenesisRoundEmission is the emission minted by round 1, before any
// halving has taken place.
const GenesisRoundEmission = 50 * chainstate.IPN

// HalvingIntervalRounds is the number of rounds between successive halvings
// of the per-round schedule, a Bitcoin-style issuance curve. At
// GenesisRoundEmission per round the first interval alone would issue more
// than SupplyCap, so the supply-cap clamp, not the halving, ends issuance;
// no fixed wall-clock cadence is implied since rounds finalize at
// TEMPORAL_FINALITY_MS rather than a fixed block time.
const HalvingIntervalRounds = 2_100_000

// Distribution policy, in basis points of a round's total payout pool
// (round emission + collected fees). The remainder after proposer and
// shadow shares goes to the network dividend pool.
const (
	ProposerBps = 5_000 // 50%
	ShadowBps   = 3_000 // 30%, split evenly among consistent shadows
)

var (
	ErrSupplyCapBreached  = errors.New("emission: round would breach supply cap")
	ErrRewardSumExceedsPool = errors.New("emission: reward sum exceeds emission+fee pool")
)

// ScheduledEmission returns the per-round emission schedule before the
// supply-cap clamp, halving every HalvingIntervalRounds the way a
// block-reward schedule halves every fixed interval; round 0 is not a
// real round (rounds are 1-indexed) and emits nothing. The halving itself
// is computed through fixedpoint.MulDivUint64 (dividing by 2^halvings)
// rather than a bare shift, so it goes through the same overflow-checked
// path as every other scaled quantity in the emission schedule.
func ScheduledEmission(roundID uint64) chainstate.Amount {
	if roundID == 0 {
		return 0
	}
	halvings := (roundID - 1) / HalvingIntervalRounds
	if halvings >= 64 {
		return 0
	}
	divisor := uint64(1) << halvings
	amount, err := fixedpoint.MulDivUint64(uint64(GenesisRoundEmission), 1, divisor)
	if err != nil {
		return 0
	}
	return chainstate.Amount(amount)
}

// Engine is the round.RewardEngine and round.ChainStateView implementation:
// it owns the cumulative ChainState totals, credits payees through the
// shared AccountStore, and draws/credits the bond ledger's treasury pool.
type Engine struct {
	mu       sync.Mutex
	accounts *chainstate.AccountStore
	bonds    *bond.Ledger
	cfg      *config.Config
	log      log.Logger
	metrics  *engineMetrics

	state       chainstate.ChainState
	checkpoints []Checkpoint
	histogram   map[chainstate.Address]uint64
}

// New constructs an emission Engine seeded from a possibly-recovered
// ChainState (zero value for a fresh chain).
func New(accounts *chainstate.AccountStore, bonds *bond.Ledger, cfg *config.Config, logger log.Logger, reg metrics.Registry, seed chainstate.ChainState) (*Engine, error) {
	m, err := newEngineMetrics(reg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NoOp()
	}
	return &Engine{
		accounts:  accounts,
		bonds:     bonds,
		cfg:       cfg,
		log:       logger,
		metrics:   m,
		state:     seed,
		histogram: make(map[chainstate.Address]uint64),
	}, nil
}

// State returns a snapshot of the cumulative totals.
func (e *Engine) State() chainstate.ChainState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// LastFinalizedRound implements round.ChainStateView.
func (e *Engine) LastFinalizedRound() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LastFinalizedRound
}

// DistributeRound implements round.RewardEngine. It computes the round's
// emission and fee pool, splits it per the distribution policy, credits
// every payee, and folds the round into the cumulative ChainState totals —
// all under a single lock so the update is atomic from any other reader's
// perspective. fallbackUsed and modelHash record this round's selector
// outcome into ChainState.SelectorFallbackActive/ActiveModelHash in the
// same update (§9 scenario 5).
func (e *Engine) DistributeRound(round uint64, block *chainstate.Block, primary chainstate.Address, consistentShadows []chainstate.Address, fallbackUsed bool, modelHash [32]byte) error {
	feePool, err := collectFees(block)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	scheduled := ScheduledEmission(round)
	remaining := chainstate.SupplyCap.Sub(e.state.TotalEmitted)
	roundEmission := chainstate.Min(scheduled, remaining)

	pool := roundEmission.Add(feePool)
	payouts, dividend := splitPool(pool, primary, consistentShadows)

	var distributed chainstate.Amount
	for _, p := range payouts {
		distributed = distributed.Add(p.amount)
	}
	if distributed.Add(dividend) > pool {
		return ErrRewardSumExceedsPool
	}
	// roundEmission was clamped to remaining above, so this can only ever
	// trip on an already-corrupt ChainState; kept as the hard backstop
	// the invariant in §4.8 requires every mutation path to enforce.
	if e.state.TotalEmitted.Add(roundEmission) > chainstate.SupplyCap {
		return ErrSupplyCapBreached
	}

	for _, p := range payouts {
		e.accounts.Credit(p.addr, p.amount)
		e.histogram[p.addr]++
	}
	e.state.TotalNetworkDividends = e.state.TotalNetworkDividends.Add(dividend)
	e.state.TotalEmitted = e.state.TotalEmitted.Add(roundEmission)
	e.state.TotalFeesCollected = e.state.TotalFeesCollected.Add(feePool)
	e.state.TotalRewardsDistributed = e.state.TotalRewardsDistributed.Add(distributed)
	e.state.LastFinalizedRound = round
	e.state.SelectorFallbackActive = fallbackUsed
	e.state.ActiveModelHash = modelHash

	e.metrics.roundsDistributed.Inc()
	e.metrics.totalEmittedGauge.Set(float64(e.state.TotalEmitted))
	e.log.Info("round emission distributed",
		log.Field64("round", int64(round)),
		log.Field64("emission_uipn", int64(roundEmission)),
		log.Field64("fee_pool_uipn", int64(feePool)),
		log.Field64("dividend_uipn", int64(dividend)))

	if e.cfg.CheckpointEveryRounds > 0 && round%e.cfg.CheckpointEveryRounds == 0 {
		e.checkpointLocked(round)
	}

	return nil
}

// ApplySlash records bonds.ApplySlash's proceeds against the cumulative
// TotalSlashed counter; the slashed amount itself already sits in the bond
// ledger's treasury, available to a later DrawTreasury.
func (e *Engine) ApplySlash(validator chainstate.Address, bps uint32) (chainstate.Amount, error) {
	amount, err := e.bonds.ApplySlash(validator, bps)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.state.TotalSlashed = e.state.TotalSlashed.Add(amount)
	e.metrics.slashesApplied.Inc()
	e.mu.Unlock()
	return amount, nil
}

type payout struct {
	addr   chainstate.Address
	amount chainstate.Amount
}

// splitPool divides pool per the distribution policy: proposer_bps to the
// primary, shadow_bps divided evenly (rounded down) among consistent
// shadows, and everything left over — the per-payee rounding remainder
// included — to the network dividend pool. If there are no consistent
// shadows the whole shadow share also falls through to the dividend pool.
func splitPool(pool chainstate.Amount, primary chainstate.Address, consistentShadows []chainstate.Address) ([]payout, chainstate.Amount) {
	// The bps->Amount conversions go through fixedpoint.MulDivUint64 — the
	// same big.Int-backed multiply-divide Fixed.Mul/Div use internally —
	// rather than a bare uint64 multiply, so a future larger SupplyCap
	// can't silently wrap before the division narrows it back down.
	proposerShare, err := fixedpoint.MulDivUint64(uint64(pool), ProposerBps, 10_000)
	if err != nil {
		proposerShare = 0
	}
	shadowShare, err := fixedpoint.MulDivUint64(uint64(pool), ShadowBps, 10_000)
	if err != nil {
		shadowShare = 0
	}

	payouts := []payout{{addr: primary, amount: chainstate.Amount(proposerShare)}}
	spent := chainstate.Amount(proposerShare)

	if n := len(consistentShadows); n > 0 {
		perShadow := chainstate.Amount(shadowShare / uint64(n))
		for _, s := range consistentShadows {
			payouts = append(payouts, payout{addr: s, amount: perShadow})
			spent = spent.Add(perShadow)
		}
	}

	dividend := pool.Sub(spent)
	return payouts, dividend
}

// collectFees sums the block's transaction fees, asserting each respects
// its type's cap — a violation here is a malformed block that should never
// have reached finalization, so it is surfaced as an error rather than
// silently clamped.
func collectFees(block *chainstate.Block) (chainstate.Amount, error) {
	var total chainstate.Amount
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if !tx.FeeWithinCap() {
			return 0, chainstate.ErrFeeExceedsCap
		}
		total = total.Add(tx.Fee)
	}
	return total, nil
}
