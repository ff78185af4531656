package cachedstore

import (
	"context"

	"github.com/discochess/coach/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store wraps another Store with caching. Reads are served from the
// backend when possible; writes go to the underlying store first and then
// refresh the backend.
type Store struct {
	underlying store.Store
	backend    Backend
}

// New creates a new cached store wrapping the given store.
func New(underlying store.Store, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// Get reads a value, checking the cache first.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check cache first.
	if data, ok := s.backend.Get(key); ok {
		return append([]byte(nil), data...), nil
	}

	// Cache miss - read from underlying store.
	data, err := s.underlying.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.backend.Set(key, append([]byte(nil), data...))
	return data, nil
}

// Put writes through to the underlying store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.underlying.Put(ctx, key, value); err != nil {
		// The underlying value is unknown now; drop any stale copy.
		s.backend.Remove(key)
		return err
	}
	s.backend.Set(key, append([]byte(nil), value...))
	return nil
}

// Delete removes key from the cache and the underlying store.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.backend.Remove(key)
	return s.underlying.Delete(ctx, key)
}

// Keys lists keys from the underlying store.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.underlying.Keys(ctx, prefix)
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
