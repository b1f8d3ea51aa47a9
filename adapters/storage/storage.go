// Package storage implements the persistent C9 storage adapter: a
// pebble-backed key-value database satisfying blockdag.Store and
// round.RecordStore, so a real node survives a restart instead of losing
// the DAG and round history the in-memory stores only hold for tests.
package storage

import (
	"github.com/cockroachdb/pebble"
	"github.com/ippan/core/blockdag"
)

// DB wraps a pebble database behind the narrow Has/Get/Put/Delete/Iterate
// surface blockdag.Store and round.RecordStore both expect.
type DB struct {
	pdb *pebble.DB
}

var _ blockdag.Store = (*DB)(nil)

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*DB, error) {
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &DB{pdb: pdb}, nil
}

// Close closes the underlying pebble database.
func (d *DB) Close() error {
	return d.pdb.Close()
}

// Has reports whether key exists.
func (d *DB) Has(key []byte) (bool, error) {
	v, closer, err := d.pdb.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	_ = v
	return true, nil
}

// Get returns the value stored at key, or (nil, nil) if absent.
func (d *DB) Get(key []byte) ([]byte, error) {
	v, closer, err := d.pdb.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	closer.Close()
	return out, nil
}

// Put writes key/value outside of a batch.
func (d *DB) Put(key, value []byte) error {
	return d.pdb.Set(key, value, pebble.Sync)
}

// Delete removes key outside of a batch.
func (d *DB) Delete(key []byte) error {
	return d.pdb.Delete(key, pebble.Sync)
}

// NewBatch returns a Batch grouping writes for a single atomic commit,
// implementing blockdag.Store.NewBatch.
func (d *DB) NewBatch() blockdag.Batch {
	return &Batch{b: d.pdb.NewBatch()}
}

// Iterate walks every key with the given prefix in ascending order,
// stopping early if fn returns an error.
func (d *DB) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := d.pdb.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

// prefixUpperBound returns the smallest key strictly greater than every key
// with the given prefix, the standard trick for a prefix-bounded pebble
// iterator; a prefix of all 0xFF bytes has no finite upper bound, so nil
// (unbounded) is returned in that case.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Batch groups writes for a single atomic commit.
type Batch struct {
	b *pebble.Batch
}

func (bt *Batch) Put(key, value []byte) error {
	return bt.b.Set(key, value, nil)
}

func (bt *Batch) Delete(key []byte) error {
	return bt.b.Delete(key, nil)
}

func (bt *Batch) Size() int {
	return int(bt.b.Len())
}

func (bt *Batch) Write() error {
	return bt.b.Commit(pebble.Sync)
}

func (bt *Batch) Reset() {
	bt.b.Reset()
}
