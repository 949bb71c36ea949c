package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/nodeflow/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.State
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.State),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, graphID string, state *domain.State) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[graphID] = copied
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, graphID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[graphID]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}

	// Copy on read so callers can't mutate the stored snapshot through the pointer
	return state.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, graphID)
	return nil
}

// List returns stored graph IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graphs := make([]string, 0, len(s.data))
	for id := range s.data {
		graphs = append(graphs, id)
	}
	sort.Strings(graphs)
	return graphs, nil
}
