// Package modelregistry fetches D-GBDT model bytes from a content store
// and verifies them against a governance-published hash before handing
// them to dgbdt.LoadModel, the C9 "model registry" adapter.
package modelregistry

import (
	"context"

	"github.com/ippan/core/dgbdt"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves raw model bytes given their content hash, typically
// backed by the same storage adapter the block DAG persists into, or a
// dedicated object store keyed by model hash.
type Fetcher interface {
	Fetch(ctx context.Context, hash [32]byte) ([]byte, error)
}

// Registry loads verified models by hash, deduplicating concurrent
// requests for the same hash onto a single Fetch call via singleflight —
// multiple validators selecting the same round can race to load a
// freshly-promoted model at once. It keeps no cache: a Load that starts
// after an earlier one for the same hash has returned fetches again.
type Registry struct {
	fetcher Fetcher
	group   singleflight.Group
}

// New constructs a Registry over fetcher.
func New(fetcher Fetcher) *Registry {
	return &Registry{fetcher: fetcher}
}

// Load fetches, hash-verifies, and parses the model published under hash.
// Concurrent calls for the same hash share one underlying fetch+parse.
func (r *Registry) Load(ctx context.Context, hash [32]byte) (*dgbdt.Model, error) {
	v, err, _ := r.group.Do(string(hash[:]), func() (interface{}, error) {
		raw, err := r.fetcher.Fetch(ctx, hash)
		if err != nil {
			return nil, err
		}
		return dgbdt.LoadModel(raw, hash)
	})
	if err != nil {
		return nil, err
	}
	return v.(*dgbdt.Model), nil
}
