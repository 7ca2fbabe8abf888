package store

import (
	"context"
	"sync"

	"github.com/viant/intake/service/dao"
)

// MemoryStore is a generic in-memory keyed store.
// It keeps entities of type *T mapped by a comparable key K obtained from the
// supplied keySelector function. Concrete DAOs embed it for Save/Load/List and
// use Insert and Update for atomic create and compare-and-swap.
type MemoryStore[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
}

// NewMemoryStore creates a new MemoryStore.
// keySelector extracts the entity key (usually the ID field) from a value.
func NewMemoryStore[K comparable, T any](keySelector func(*T) K) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Insert stores v unless its key exists; it reports whether v was stored.
func (s *MemoryStore[K, T]) Insert(_ context.Context, v *T) (bool, error) {
	if v == nil {
		return false, dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = v
	return true, nil
}

// Update replaces the record under key with fn's result while holding the
// write lock. fn receives nil when the key is missing.
func (s *MemoryStore[K, T]) Update(_ context.Context, key K, fn func(current *T) (*T, error)) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.records[key])
	if err != nil {
		return nil, err
	}
	if next != nil {
		s.records[key] = next
	}
	return next, nil
}

// Load returns a record by key, or nil when it is missing.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// List returns all stored records passing filter; nil filter keeps all.
func (s *MemoryStore[K, T]) List(_ context.Context, filter func(*T) bool) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if filter != nil && !filter(v) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
