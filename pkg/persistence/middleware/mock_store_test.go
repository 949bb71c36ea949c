package middleware_test

import (
	"context"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.State
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.State),
	}
}

func (s *MockStore) Save(ctx context.Context, graphID string, state *domain.State) error {
	s.data[graphID] = state
	return nil
}

func (s *MockStore) Load(ctx context.Context, graphID string) (*domain.State, error) {
	state, ok := s.data[graphID]
	if !ok {
		return nil, domain.ErrGraphNotFound
	}
	return state, nil
}

func (s *MockStore) Delete(ctx context.Context, graphID string) error {
	delete(s.data, graphID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SnapshotStore = (*MockStore)(nil)
