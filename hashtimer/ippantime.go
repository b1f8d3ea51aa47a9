package hashtimer

import (
	"sort"
	"sync"
	"time"
)

// Clock is the minimal interface round/blockdag/mempool need from
// IPPAN-Time: a monotonically non-decreasing microsecond counter.
type Clock interface {
	NowUs() uint64
}

// maxPeerSamples is the bounded window of retained samples per peer
// (default 600, per §4.2).
const maxPeerSamples = 600

// maxSampleAgeUs expires samples older than 5s, per §4.2.
const maxSampleAgeUs = 5_000_000

// defaultJitterThresholdUs discards peer samples whose round-trip time
// exceeds this bound before they can skew the median offset.
const defaultJitterThresholdUs = 250_000

// PeerSample is one observation received from the P2P adapter: a peer's
// claimed wall time and the round-trip time of the exchange that produced
// it.
type PeerSample struct {
	PeerID     string
	ObservedUs uint64
	RTTUs      uint64
	ReceivedAt uint64 // local IPPAN-Time at which the sample was recorded
}

// IPPANTime is the network-wide monotonic microsecond clock described in
// §4.2: every observation is
// max(local OS monotonic, last_observed+1, peer_median-local_offset).
type IPPANTime struct {
	mu              sync.Mutex
	last            uint64
	epoch           time.Time
	jitterThreshold uint64
	perPeer         map[string][]PeerSample
	offsetUs        int64 // peer_median - local, applied additively to raw monotonic reads
}

// NewIPPANTime constructs a clock anchored at the given epoch (the fixed
// epoch the 56-bit time prefix counts microseconds from).
func NewIPPANTime(epoch time.Time) *IPPANTime {
	return &IPPANTime{
		epoch:           epoch,
		jitterThreshold: defaultJitterThresholdUs,
		perPeer:         make(map[string][]PeerSample),
	}
}

func (c *IPPANTime) rawMonotonicUs() uint64 {
	d := time.Since(c.epoch)
	if d < 0 {
		return 0
	}
	return uint64(d.Microseconds())
}

// NowUs returns the next IPPAN-Time value, enforcing the monotonic floor.
func (c *IPPANTime) NowUs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowUsLocked()
}

func (c *IPPANTime) nowUsLocked() uint64 {
	raw := c.rawMonotonicUs()
	adjusted := applyOffset(raw, c.offsetUs)

	candidate := adjusted
	if raw > candidate {
		candidate = raw
	}
	if c.last+1 > candidate {
		candidate = c.last + 1
	}
	c.last = candidate
	return candidate
}

func applyOffset(raw uint64, offsetUs int64) uint64 {
	if offsetUs >= 0 {
		return raw + uint64(offsetUs)
	}
	neg := uint64(-offsetUs)
	if neg > raw {
		return 0
	}
	return raw - neg
}

// ObservePeerSample records a (peer, observed_us, rtt_us) triple from the
// P2P adapter, maintaining the bounded per-peer window and recomputing the
// median offset. Samples whose RTT exceeds the jitter threshold are
// discarded before ever entering the window.
func (c *IPPANTime) ObservePeerSample(s PeerSample) {
	if s.RTTUs > c.jitterThreshold {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowUsLocked()
	s.ReceivedAt = now

	window := c.perPeer[s.PeerID]
	window = expireOld(window, now)
	window = append(window, s)
	if len(window) > maxPeerSamples {
		window = window[len(window)-maxPeerSamples:]
	}
	c.perPeer[s.PeerID] = window

	c.offsetUs = c.computeMedianOffsetLocked(now)
}

func expireOld(window []PeerSample, now uint64) []PeerSample {
	kept := window[:0:0]
	for _, s := range window {
		if now-s.ReceivedAt <= maxSampleAgeUs {
			kept = append(kept, s)
		}
	}
	return kept
}

// computeMedianOffsetLocked derives peer_median - local_offset across all
// peers' most recent unexpired samples.
func (c *IPPANTime) computeMedianOffsetLocked(now uint64) int64 {
	var offsets []int64
	for peer, window := range c.perPeer {
		window = expireOld(window, now)
		c.perPeer[peer] = window
		if len(window) == 0 {
			continue
		}
		latest := window[len(window)-1]
		offsets = append(offsets, int64(latest.ObservedUs)-int64(now))
	}
	if len(offsets) == 0 {
		return 0
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	mid := len(offsets) / 2
	if len(offsets)%2 == 1 {
		return offsets[mid]
	}
	return (offsets[mid-1] + offsets[mid]) / 2
}

// SetJitterThreshold overrides the default RTT jitter rejection threshold;
// exposed for configuration and tests.
func (c *IPPANTime) SetJitterThreshold(thresholdUs uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jitterThreshold = thresholdUs
}

// NowTx, NowBlock and NowRound derive a HashTimer for the respective
// context using the clock's current IPPAN-Time value.
func NowTx(c Clock, domain []byte, payload []byte, nonce uint64, nodeID [32]byte) HashTimer {
	return Derive(ContextTx, c.NowUs(), domain, payload, nonce, nodeID)
}

func NowBlock(c Clock, domain []byte, payload []byte, nonce uint64, nodeID [32]byte) HashTimer {
	return Derive(ContextBlock, c.NowUs(), domain, payload, nonce, nodeID)
}

func NowRound(c Clock, domain []byte, payload []byte, nonce uint64, nodeID [32]byte) HashTimer {
	return Derive(ContextRound, c.NowUs(), domain, payload, nonce, nodeID)
}
