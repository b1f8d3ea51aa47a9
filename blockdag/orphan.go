package blockdag

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ippan/core/chainstate"
)

const (
	orphanCapacity = 10_000
	orphanTTL      = 60 * time.Second
)

// orphanEntry holds a block that arrived before one of its parents.
type orphanEntry struct {
	block     *chainstate.Block
	quarantinedAt time.Time
}

// orphanPool quarantines blocks with missing parents. Capacity is bounded
// by an LRU cache; entries are additionally dropped once they exceed the
// TTL, regardless of LRU pressure.
type orphanPool struct {
	mu    sync.Mutex
	cache *lru.Cache[chainstate.BlockID, *orphanEntry]
	now   func() time.Time
}

func newOrphanPool(now func() time.Time) *orphanPool {
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[chainstate.BlockID, *orphanEntry](orphanCapacity)
	if err != nil {
		// Only fails for a non-positive size, which orphanCapacity never is.
		panic(err)
	}
	return &orphanPool{cache: cache, now: now}
}

func (p *orphanPool) add(b *chainstate.Block, id chainstate.BlockID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Add(id, &orphanEntry{block: b, quarantinedAt: p.now()})
}

func (p *orphanPool) remove(id chainstate.BlockID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Remove(id)
}

// sweep evicts TTL-expired entries and returns the blocks still quarantined.
func (p *orphanPool) sweep() []*chainstate.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var live []*chainstate.Block
	for _, id := range p.cache.Keys() {
		entry, ok := p.cache.Peek(id)
		if !ok {
			continue
		}
		if now.Sub(entry.quarantinedAt) > orphanTTL {
			p.cache.Remove(id)
			continue
		}
		live = append(live, entry.block)
	}
	return live
}

func (p *orphanPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}
