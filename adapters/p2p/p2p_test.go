package p2p

import (
	"context"
	"sync"
	"testing"

	"github.com/ippan/core/adapters/reputation"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	mu    sync.Mutex
	peers [][32]byte
	sent  []([32]byte)
	fail  map[[32]byte]bool
}

func (s *stubTransport) Peers() [][32]byte { return s.peers }

func (s *stubTransport) SendTo(ctx context.Context, peer [32]byte, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[peer] {
		return context.Canceled
	}
	s.sent = append(s.sent, peer)
	return nil
}

func TestInboundOfferDropsOldestWhenFull(t *testing.T) {
	in := NewInbound()
	var dropped int
	in.Dropped = func() { dropped++ }

	for i := 0; i < InboundQueueCapacity+5; i++ {
		in.Offer(Message{Kind: KindBlock, Payload: []byte{byte(i)}})
	}
	require.Equal(t, 5, dropped)
	require.Len(t, in.ch, InboundQueueCapacity)
}

func TestBroadcastSkipsBannedPeers(t *testing.T) {
	var banned, ok [32]byte
	banned[0] = 1
	ok[0] = 2

	bans := reputation.NewManager(reputation.Config{Threshold: 1, BanDuration: reputation.DefaultConfig.BanDuration})
	bans.Penalize(banned, 1)

	transport := &stubTransport{peers: [][32]byte{banned, ok}}
	b := NewBroadcaster(transport, bans)

	err := b.Broadcast(context.Background(), Message{Kind: KindBlock, Payload: []byte("hello")})
	require.NoError(t, err)
	require.Equal(t, [][32]byte{ok}, transport.sent)
}

func TestBroadcastRejectsOversizedMessage(t *testing.T) {
	transport := &stubTransport{}
	b := NewBroadcaster(transport, nil)

	err := b.Broadcast(context.Background(), Message{Kind: KindTransaction, Payload: make([]byte, MaxTxBytes+1)})
	require.ErrorIs(t, err, ErrMessageTooLarge)
}
