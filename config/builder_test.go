package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBuilderDefaults(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	require.Equal(t, 250, cfg.TemporalFinalityMs)
	require.Equal(t, 3, cfg.ShadowVerifierCount)
}

func TestWithTemporalFinalityRejectsOutOfRange(t *testing.T) {
	_, err := NewBuilder().WithTemporalFinality(50 * time.Millisecond).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithTemporalFinality(300 * time.Millisecond).Build()
	require.Error(t, err)

	cfg, err := NewBuilder().WithTemporalFinality(150 * time.Millisecond).Build()
	require.NoError(t, err)
	require.Equal(t, 150, cfg.TemporalFinalityMs)
}

func TestWithShadowVerifierCountRejectsOutOfRange(t *testing.T) {
	_, err := NewBuilder().WithShadowVerifierCount(2).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithShadowVerifierCount(6).Build()
	require.Error(t, err)

	cfg, err := NewBuilder().WithShadowVerifierCount(4).Build()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.ShadowVerifierCount)
}

func TestFromPresetClonesRatherThanAliases(t *testing.T) {
	cfg, err := NewBuilder().FromPreset(LocalNetwork).WithMaxTxsPerBlock(999).Build()
	require.NoError(t, err)
	require.Equal(t, 999, cfg.MaxTxsPerBlock)
	require.NotEqual(t, 999, LocalConfig.MaxTxsPerBlock, "mutating a built config must not mutate the shared preset")
}

func TestFromPresetRejectsUnknown(t *testing.T) {
	_, err := NewBuilder().FromPreset(NetworkType("nonsense")).Build()
	require.Error(t, err)
}

func TestErrorShortCircuitsSubsequentCalls(t *testing.T) {
	_, err := NewBuilder().
		WithShadowVerifierCount(99).   // invalid, sets err
		WithMaxTxsPerBlock(5000).      // should be a no-op once err is set
		Build()
	require.Error(t, err)
}
