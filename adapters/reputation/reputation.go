// Package reputation tracks peer misbehavior and bans persistently
// uncooperative peers from further admission, the C9 "peer reputation
// tracking" supplement. The ingest dispatcher charges penalties through it
// when a peer's gossiped block or transaction fails validation; neither
// the mempool nor the DAG store calls it, and the dispatcher does not
// consult Banned before handling a peer's message.
package reputation

import (
	"sync"
	"time"
)

// Tracker is the narrow reputation surface: Penalize registers weight
// units of misbehavior, Banned reports whether the peer is currently shut
// out.
type Tracker interface {
	Penalize(peer [32]byte, weight int)
	Banned(peer [32]byte) bool
}

// Config mirrors the teacher's benchlist.Config: a peer is banned when its
// accumulated penalty weight reaches Threshold and at least
// MinimumFailingWindow has passed since its first recorded penalty, and
// stays banned for BanDuration.
type Config struct {
	Threshold             int
	MinimumFailingWindow  time.Duration
	BanDuration           time.Duration
}

// DefaultConfig matches the values IPPAN's reference node ships with.
var DefaultConfig = Config{
	Threshold:            10,
	MinimumFailingWindow: time.Second,
	BanDuration:          10 * time.Minute,
}

type record struct {
	weight    int
	firstSeen time.Time
}

// Manager is the concrete Tracker, grounded on the teacher's benchlist
// manager: accumulate penalty weight per peer, ban once threshold is
// crossed after the minimum failing window elapses, and expire bans after
// BanDuration. now is injected so tests run without wall-clock sleeps.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	bans    map[[32]byte]time.Time
	records map[[32]byte]*record
}

// NewManager constructs a Manager using cfg and the real wall clock.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		now:     time.Now,
		bans:    make(map[[32]byte]time.Time),
		records: make(map[[32]byte]*record),
	}
}

// Penalize registers weight units of misbehavior against peer.
func (m *Manager) Penalize(peer [32]byte, weight int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, banned := m.bans[peer]; banned {
		return
	}

	now := m.now()
	r, ok := m.records[peer]
	if !ok {
		r = &record{firstSeen: now}
		m.records[peer] = r
	}
	r.weight += weight

	if r.weight >= m.cfg.Threshold && now.Sub(r.firstSeen) >= m.cfg.MinimumFailingWindow {
		m.bans[peer] = now.Add(m.cfg.BanDuration)
		delete(m.records, peer)
	}
}

// Banned reports whether peer is currently banned, lazily expiring a ban
// whose BanDuration has elapsed.
func (m *Manager) Banned(peer [32]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.bans[peer]
	if !ok {
		return false
	}
	if m.now().After(until) {
		delete(m.bans, peer)
		return false
	}
	return true
}

// RegisterGoodBehavior clears any accumulated (non-banning) penalty weight
// for peer, mirroring the teacher's RegisterResponse: a peer that starts
// behaving again is not punished forever for a past rough patch.
func (m *Manager) RegisterGoodBehavior(peer [32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, peer)
}
