// Package cache provides the key-normalized stores backing retrieval
// results: a bounded in-process LRU level and an optional Redis level shared
// across processes, composed through a read-through tier.
package cache

import (
	"context"
	"strings"

	"github.com/Laisky/errors/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// KeyFunc collapses equivalent keys (queries, URLs) onto one cache entry.
type KeyFunc func(string) string

// TrimLower is the default key normalization: whitespace-trimmed lowercase.
func TrimLower(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Store is the contract the facade consumes. Lookups and inserts are atomic
// per key so callers never observe partially-populated entries.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
}

// Memory is a bounded LRU store. Lifetime is the process lifetime; eviction
// only happens by capacity, there is no TTL.
type Memory[V any] struct {
	entries *lru.Cache[string, V]
	keyFn   KeyFunc
}

// NewMemory constructs a Memory store holding at most size entries.
func NewMemory[V any](size int, keyFn KeyFunc) (*Memory[V], error) {
	if size <= 0 {
		return nil, errors.Errorf("cache size must be positive, got %d", size)
	}
	if keyFn == nil {
		keyFn = TrimLower
	}

	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, errors.Wrap(err, "new lru cache")
	}
	return &Memory[V]{entries: entries, keyFn: keyFn}, nil
}

// Get returns the cached value for the normalized key.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	value, ok := m.entries.Get(m.keyFn(key))
	return value, ok, nil
}

// Set stores the value under the normalized key.
func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.entries.Add(m.keyFn(key), value)
	return nil
}

// Len reports the current number of cached entries.
func (m *Memory[V]) Len() int {
	return m.entries.Len()
}

// Tiered composes stores ordered fastest first. Reads stop at the first
// level that hits and backfill the faster levels; writes go to every level.
type Tiered[V any] struct {
	levels []Store[V]
}

// NewTiered builds a tiered store. Nil levels are skipped.
func NewTiered[V any](levels ...Store[V]) (*Tiered[V], error) {
	filtered := make([]Store[V], 0, len(levels))
	for _, level := range levels {
		if level != nil {
			filtered = append(filtered, level)
		}
	}
	if len(filtered) == 0 {
		return nil, errors.New("tiered cache requires at least one level")
	}
	return &Tiered[V]{levels: filtered}, nil
}

// Get searches the levels in order. Lookup errors on one level fall through
// to the next so a degraded Redis never breaks cache reads.
func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	for idx, level := range t.levels {
		value, ok, err := level.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		for _, faster := range t.levels[:idx] {
			_ = faster.Set(ctx, key, value)
		}
		return value, true, nil
	}
	return zero, false, nil
}

// Set writes to every level; the first error is returned after all levels
// were attempted.
func (t *Tiered[V]) Set(ctx context.Context, key string, value V) error {
	var firstErr error
	for _, level := range t.levels {
		if err := level.Set(ctx, key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
