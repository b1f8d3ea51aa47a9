package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(cfg Config, start time.Time) (*Manager, *time.Time) {
	clock := start
	m := NewManager(cfg)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestPenalizeBansAfterThresholdCrossed(t *testing.T) {
	cfg := Config{Threshold: 3, MinimumFailingWindow: 0, BanDuration: time.Minute}
	m, _ := newTestManager(cfg, time.Unix(0, 0))
	var peer [32]byte
	peer[0] = 1

	m.Penalize(peer, 1)
	require.False(t, m.Banned(peer))
	m.Penalize(peer, 2)
	require.True(t, m.Banned(peer))
}

func TestPenalizeRespectsMinimumFailingWindow(t *testing.T) {
	cfg := Config{Threshold: 1, MinimumFailingWindow: time.Minute, BanDuration: time.Minute}
	m, clock := newTestManager(cfg, time.Unix(0, 0))
	var peer [32]byte
	peer[0] = 1

	m.Penalize(peer, 5)
	require.False(t, m.Banned(peer), "window has not elapsed yet")

	*clock = clock.Add(2 * time.Minute)
	m.Penalize(peer, 1)
	require.True(t, m.Banned(peer))
}

func TestBanExpiresAfterDuration(t *testing.T) {
	cfg := Config{Threshold: 1, MinimumFailingWindow: 0, BanDuration: time.Minute}
	m, clock := newTestManager(cfg, time.Unix(0, 0))
	var peer [32]byte
	peer[0] = 1

	m.Penalize(peer, 1)
	require.True(t, m.Banned(peer))

	*clock = clock.Add(2 * time.Minute)
	require.False(t, m.Banned(peer))
}

func TestRegisterGoodBehaviorClearsPendingWeight(t *testing.T) {
	cfg := Config{Threshold: 5, MinimumFailingWindow: 0, BanDuration: time.Minute}
	m, _ := newTestManager(cfg, time.Unix(0, 0))
	var peer [32]byte
	peer[0] = 1

	m.Penalize(peer, 4)
	m.RegisterGoodBehavior(peer)
	m.Penalize(peer, 4)
	require.False(t, m.Banned(peer), "cleared weight should not carry over")
}
