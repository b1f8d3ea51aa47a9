// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"

	"github.com/ippan/core/chainstate"
)

// NetworkType represents different network configurations.
type NetworkType string

const (
	MainnetNetwork NetworkType = "mainnet"
	TestnetNetwork NetworkType = "testnet"
	LocalNetwork   NetworkType = "local"
)

// Config holds every tunable operational parameter the round engine,
// mempool, bond ledger and D-GBDT selector read at startup.
type Config struct {
	// TemporalFinalityMs is the deadline (from round open) at which the
	// round engine finalizes deterministically, no quorum required
	// (§4.5). Must fall within [100, 250].
	TemporalFinalityMs int `json:"temporalFinalityMs"`

	// ShadowVerifierCount is shadow_count: how many shadow verifiers are
	// drawn alongside the primary each round (§4.5, §4.6).
	ShadowVerifierCount int `json:"shadowVerifierCount"`

	// MinReputationScore is the D-GBDT weight floor below which a
	// validator is excluded from selection even if eligible by bond.
	MinReputationScore int64 `json:"minReputationScore"`

	// ValidatorBondMin is the minimum effective bond required to join
	// the eligibility set (§4.7). Defaults to bond.MinimumBond.
	ValidatorBondMin chainstate.Amount `json:"validatorBondMin"`

	// MaxTxsPerBlock bounds how many mempool entries a primary may
	// assemble into one proposal.
	MaxTxsPerBlock int `json:"maxTxsPerBlock"`

	// SlotDurationMs is the minimum spacing between a validator's
	// consecutive round opens, bounding proposal rate.
	SlotDurationMs int `json:"slotDurationMs"`

	// CheckpointEveryRounds is K in §4.8's audit checkpoint cadence.
	CheckpointEveryRounds uint64 `json:"checkpointEveryRounds"`

	// MempoolMaxPerSender / MempoolMaxGlobal feed mempool.New directly.
	MempoolMaxPerSender int `json:"mempoolMaxPerSender"`
	MempoolMaxGlobal    int `json:"mempoolMaxGlobal"`

	TotalNodes int `json:"totalNodes,omitempty"`
}

// Builder provides a fluent interface for constructing node configurations.
type Builder struct {
	config *Config
	err    error
}

// NewBuilder creates a new configuration builder seeded with sensible
// defaults: TestnetConfig's values except MinReputationScore, which is
// 5,000 as in MainnetConfig.
func NewBuilder() *Builder {
	return &Builder{
		config: &Config{
			TemporalFinalityMs:    250,
			ShadowVerifierCount:   3,
			MinReputationScore:    5_000,
			ValidatorBondMin:      10 * chainstate.IPN,
			MaxTxsPerBlock:        1_000,
			SlotDurationMs:        100,
			CheckpointEveryRounds: 1_000,
			MempoolMaxPerSender:   64,
			MempoolMaxGlobal:      50_000,
		},
	}
}

// FromPreset loads a preset configuration.
func (b *Builder) FromPreset(preset NetworkType) *Builder {
	if b.err != nil {
		return b
	}

	switch preset {
	case MainnetNetwork:
		b.config = &MainnetConfig
	case TestnetNetwork:
		b.config = &TestnetConfig
	case LocalNetwork:
		b.config = &LocalConfig
	default:
		b.err = fmt.Errorf("unknown preset: %s", preset)
		return b
	}

	// Clone to avoid modifying the shared preset value.
	clone := *b.config
	b.config = &clone
	return b
}

// WithTemporalFinality sets the round's deterministic finality deadline.
// Must fall within the spec's [100ms, 250ms] range.
func (b *Builder) WithTemporalFinality(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	ms := int(d / time.Millisecond)
	if ms < 100 || ms > 250 {
		b.err = fmt.Errorf("temporal finality must be within [100ms, 250ms], got %dms", ms)
		return b
	}
	b.config.TemporalFinalityMs = ms
	return b
}

// WithShadowVerifierCount sets how many shadows are drawn per round.
// The spec requires 3-5.
func (b *Builder) WithShadowVerifierCount(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 3 || n > 5 {
		b.err = fmt.Errorf("shadow verifier count must be within [3, 5], got %d", n)
		return b
	}
	b.config.ShadowVerifierCount = n
	return b
}

// WithValidatorBondMin overrides the eligibility bond floor.
func (b *Builder) WithValidatorBondMin(amount chainstate.Amount) *Builder {
	if b.err != nil {
		return b
	}
	if amount <= 0 {
		b.err = fmt.Errorf("validator bond minimum must be positive, got %d", amount)
		return b
	}
	b.config.ValidatorBondMin = amount
	return b
}

// WithMaxTxsPerBlock bounds block assembly size.
func (b *Builder) WithMaxTxsPerBlock(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("max txs per block must be at least 1, got %d", n)
		return b
	}
	b.config.MaxTxsPerBlock = n
	return b
}

// WithMempoolLimits overrides the mempool's per-sender and global caps.
func (b *Builder) WithMempoolLimits(maxPerSender, maxGlobal int) *Builder {
	if b.err != nil {
		return b
	}
	if maxPerSender < 1 || maxGlobal < maxPerSender {
		b.err = fmt.Errorf("invalid mempool limits: perSender=%d global=%d", maxPerSender, maxGlobal)
		return b
	}
	b.config.MempoolMaxPerSender = maxPerSender
	b.config.MempoolMaxGlobal = maxGlobal
	return b
}

// ForNodeCount records the target network size, used only for operator
// visibility (unlike the BFT-quorum configs this replaces, round
// finalization here never depends on peer count).
func (b *Builder) ForNodeCount(totalNodes int) *Builder {
	if b.err != nil {
		return b
	}
	if totalNodes < 1 {
		b.err = fmt.Errorf("total nodes must be at least 1, got %d", totalNodes)
		return b
	}
	b.config.TotalNodes = totalNodes
	return b
}

// OptimizeForLatency favors the lower end of the finality window and
// raises mempool throughput headroom.
func (b *Builder) OptimizeForLatency() *Builder {
	if b.err != nil {
		return b
	}
	b.config.TemporalFinalityMs = 100
	b.config.MempoolMaxGlobal = 100_000
	return b
}

// OptimizeForThroughput raises the per-block transaction ceiling and
// mempool capacity.
func (b *Builder) OptimizeForThroughput() *Builder {
	if b.err != nil {
		return b
	}
	b.config.MaxTxsPerBlock = 4_000
	b.config.MempoolMaxGlobal = 200_000
	return b
}

// Build returns the final configuration.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.config, nil
}

// Preset configurations.
var (
	MainnetConfig = Config{
		TemporalFinalityMs:    250,
		ShadowVerifierCount:   5,
		MinReputationScore:    5_000,
		ValidatorBondMin:      10 * chainstate.IPN,
		MaxTxsPerBlock:        1_000,
		SlotDurationMs:        100,
		CheckpointEveryRounds: 10_000,
		MempoolMaxPerSender:   64,
		MempoolMaxGlobal:      50_000,
	}

	TestnetConfig = Config{
		TemporalFinalityMs:    250,
		ShadowVerifierCount:   3,
		MinReputationScore:    2_000,
		ValidatorBondMin:      10 * chainstate.IPN,
		MaxTxsPerBlock:        1_000,
		SlotDurationMs:        100,
		CheckpointEveryRounds: 1_000,
		MempoolMaxPerSender:   64,
		MempoolMaxGlobal:      50_000,
	}

	LocalConfig = Config{
		TemporalFinalityMs:    100,
		ShadowVerifierCount:   3,
		MinReputationScore:    0,
		ValidatorBondMin:      1 * chainstate.IPN,
		MaxTxsPerBlock:        100,
		SlotDurationMs:        10,
		CheckpointEveryRounds: 100,
		MempoolMaxPerSender:   16,
		MempoolMaxGlobal:      1_000,
	}
)
