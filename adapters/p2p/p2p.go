// Package p2p defines the narrow inbound/outbound message-bus contract
// C9 consumes: an unordered, unreliable gossip channel of (peer, message)
// pairs feeding block ingestion and mempool admission, and a broadcast
// primitive the round engine uses to publish proposals and attestations.
// The transport itself (libp2p or otherwise) is out of scope; this package
// only shapes what crosses that boundary.
package p2p

import (
	"context"
	"errors"

	"github.com/ippan/core/adapters/reputation"
	"golang.org/x/sync/errgroup"
)

// Size caps from §4.9: gossip messages (blocks, attestations) are capped
// at 1 MiB, individual transactions at 128 KiB.
const (
	MaxGossipBytes = 1 << 20
	MaxTxBytes     = 128 << 10
)

// InboundQueueCapacity bounds the buffered channel feeding the engine;
// beyond this, gossip arrivals are dropped oldest-first rather than
// applying backpressure to the transport.
const InboundQueueCapacity = 1024

var (
	ErrMessageTooLarge  = errors.New("p2p: message exceeds size cap")
	ErrPeerBanned       = errors.New("p2p: peer is banned")
)

// Kind tags an inbound/outbound gossip message's payload type.
type Kind byte

const (
	KindBlock Kind = iota
	KindAttestation
	KindTransaction
	KindPeerTimeSample
)

func (k Kind) maxBytes() int {
	if k == KindTransaction {
		return MaxTxBytes
	}
	return MaxGossipBytes
}

// Message is one gossip envelope: a peer-attributed, size-capped payload.
type Message struct {
	Peer    [32]byte
	Kind    Kind
	Payload []byte
}

// Inbound is the bounded, drop-oldest queue the transport feeds and the
// engine's I/O task drains. Dropped is incremented whenever a full queue
// forces the oldest pending message out to make room for a new one.
type Inbound struct {
	ch      chan Message
	Dropped func()
}

// NewInbound returns an Inbound queue with InboundQueueCapacity capacity.
func NewInbound() *Inbound {
	return &Inbound{ch: make(chan Message, InboundQueueCapacity)}
}

// Offer enqueues msg, dropping the oldest pending message first if the
// queue is already full (gossip's full-queue policy per §4.9).
func (in *Inbound) Offer(msg Message) {
	select {
	case in.ch <- msg:
		return
	default:
	}
	select {
	case <-in.ch:
		if in.Dropped != nil {
			in.Dropped()
		}
	default:
	}
	select {
	case in.ch <- msg:
	default:
	}
}

// Recv returns the channel the engine's I/O task ranges over.
func (in *Inbound) Recv() <-chan Message {
	return in.ch
}

// Transport is the narrow outbound surface a broadcaster needs from the
// underlying network stack: send one message to one peer.
type Transport interface {
	SendTo(ctx context.Context, peer [32]byte, msg Message) error
	Peers() [][32]byte
}

// Broadcaster fans a message out to every known peer concurrently,
// skipping banned peers and validating size caps before dispatch —
// grounded on the teacher's one-call-per-peer Sender shape, generalized
// from per-message-type methods to a single typed envelope.
type Broadcaster struct {
	transport Transport
	bans      *reputation.Manager
}

// NewBroadcaster constructs a Broadcaster over transport, consulting bans
// to skip currently-banned peers.
func NewBroadcaster(transport Transport, bans *reputation.Manager) *Broadcaster {
	return &Broadcaster{transport: transport, bans: bans}
}

// Broadcast validates msg's size against its Kind's cap, then sends it to
// every non-banned peer concurrently, returning the first send error (if
// any) after all sends complete.
func (b *Broadcaster) Broadcast(ctx context.Context, msg Message) error {
	if len(msg.Payload) > msg.Kind.maxBytes() {
		return ErrMessageTooLarge
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, peer := range b.transport.Peers() {
		peer := peer
		if b.bans != nil && b.bans.Banned(peer) {
			continue
		}
		g.Go(func() error {
			return b.transport.SendTo(ctx, peer, msg)
		})
	}
	return g.Wait()
}
