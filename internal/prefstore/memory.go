package prefstore

import (
	"context"
	"sync"

	"github.com/pitabwire/gridcore/model"
)

// MemoryStore is an in-memory Store. Suitable for testing and
// single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.PersistedState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.PersistedState)}
}

// Load returns a copy of the stored record.
func (s *MemoryStore) Load(_ context.Context, key string) (model.PersistedState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[key]
	if !ok {
		return model.PersistedState{}, false, nil
	}
	return cloneState(st), true, nil
}

// Save stores a copy of state.
func (s *MemoryStore) Save(_ context.Context, key string, state model.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cloneState(state)
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored records. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
