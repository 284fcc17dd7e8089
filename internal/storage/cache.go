package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"fitwalk/internal/model"
)

type cachedLookup struct {
	fitness float64
	found   bool
}

// CachedStore fronts a Store with a bounded point-lookup cache. Misses are
// cached as well, since walks revisit the same unobserved neighbours repeatedly.
type CachedStore struct {
	Store
	cache *ristretto.Cache[string, cachedLookup]
}

func NewCachedStore(inner Store, maxEntries int64) (*CachedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache size must be positive: %d", maxEntries)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cachedLookup]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &CachedStore{Store: inner, cache: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, sequence string) (float64, bool, error) {
	if hit, ok := s.cache.Get(sequence); ok {
		return hit.fitness, hit.found, nil
	}
	fitness, found, err := s.Store.Get(ctx, sequence)
	if err != nil {
		return 0, false, err
	}
	s.cache.Set(sequence, cachedLookup{fitness: fitness, found: found}, 1)
	return fitness, found, nil
}

func (s *CachedStore) PutBatch(ctx context.Context, variants []model.Variant) error {
	if err := s.Store.PutBatch(ctx, variants); err != nil {
		return err
	}
	for _, variant := range variants {
		s.cache.Del(variant.Sequence)
	}
	return nil
}

// Wait blocks until buffered cache writes are applied.
func (s *CachedStore) Wait() {
	s.cache.Wait()
}

func (s *CachedStore) Close() error {
	s.cache.Close()
	return CloseIfSupported(s.Store)
}
