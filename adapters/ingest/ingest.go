// Package ingest wires the P2P inbound queue to block and transaction
// admission, penalizing peers whose gossip fails validation — the glue
// between C9's P2P adapter, C3's block store, and C4's mempool that spec.md
// §4.9 describes but does not itself implement as a type.
package ingest

import (
	"context"
	"encoding/json"

	"github.com/ippan/core/adapters/p2p"
	"github.com/ippan/core/adapters/reputation"
	"github.com/ippan/core/blockdag"
	"github.com/ippan/core/chainstate"
	"github.com/ippan/core/log"
	"github.com/ippan/core/mempool"
)

// invalidWindowPenalty and invalidSignaturePenalty are the reputation
// weights charged for the three misbehaviors the dispatcher penalizes: a
// block HashTimer outside the acceptance window and a block merkle-root
// mismatch (both charged invalidWindowPenalty), and a transaction with an
// invalid signature (charged invalidSignaturePenalty). Other
// admission failures (bad nonce, insufficient funds, full queues) are
// normal operating conditions, not misbehavior, and are not penalized.
const (
	invalidWindowPenalty    = 5
	invalidSignaturePenalty = 5
)

// Dispatcher drains a P2P inbound queue, routing each message to the DAG
// or mempool and applying reputation penalties for malformed input.
type Dispatcher struct {
	dag      *blockdag.Graph
	pool     *mempool.Pool
	accounts mempool.AccountView
	bans     *reputation.Manager
	log      log.Logger
}

// NewDispatcher constructs a Dispatcher over dag/pool/accounts, penalizing
// misbehaving peers through bans.
func NewDispatcher(dag *blockdag.Graph, pool *mempool.Pool, accounts mempool.AccountView, bans *reputation.Manager, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Dispatcher{dag: dag, pool: pool, accounts: accounts, bans: bans, log: logger}
}

// Run drains in until ctx is cancelled, dispatching each message by Kind.
func (d *Dispatcher) Run(ctx context.Context, in *p2p.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-in.Recv():
			d.dispatch(msg)
		}
	}
}

func (d *Dispatcher) dispatch(msg p2p.Message) {
	switch msg.Kind {
	case p2p.KindBlock:
		d.handleBlock(msg)
	case p2p.KindTransaction:
		d.handleTransaction(msg)
	default:
		// Attestations and peer time samples are consumed directly by the
		// round engine and IPPAN-Time service respectively; this
		// dispatcher only owns the two paths with admission side effects.
	}
}

func (d *Dispatcher) handleBlock(msg p2p.Message) {
	block, err := chainstate.DecodeWire(msg.Payload)
	if err != nil {
		d.log.Warn("ingest: malformed block payload", log.ErrField(err))
		return
	}

	_, err = d.dag.InsertBlock(block)
	switch err {
	case nil:
		return
	case blockdag.ErrInvalidWindow:
		d.bans.Penalize(msg.Peer, invalidWindowPenalty)
	default:
		if err == chainstate.ErrMerkleMismatch {
			d.bans.Penalize(msg.Peer, invalidWindowPenalty)
		}
	}
}

func (d *Dispatcher) handleTransaction(msg p2p.Message) {
	var tx chainstate.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		d.log.Warn("ingest: malformed transaction payload", log.ErrField(err))
		return
	}

	err := d.pool.Add(&tx, d.accounts)
	if err == mempool.ErrInvalidSignature {
		d.bans.Penalize(msg.Peer, invalidSignaturePenalty)
	}
}

