package ports

import (
	"context"

	"github.com/aretw0/nodeflow/pkg/domain"
)

// SnapshotStore persists whole graph snapshots keyed by graph ID.
// The graph store calls Save after every effective transition.
type SnapshotStore interface {
	// Save persists the snapshot for a given graph ID, replacing any previous one.
	Save(ctx context.Context, graphID string, state *domain.State) error

	// Load retrieves the snapshot for a given graph ID.
	// Returns domain.ErrGraphNotFound if the graph does not exist.
	Load(ctx context.Context, graphID string) (*domain.State, error)

	// Delete removes the snapshot for a given graph ID. Deleting a missing graph is not an error.
	Delete(ctx context.Context, graphID string) error

	// List returns the IDs of every stored graph.
	List(ctx context.Context) ([]string, error)
}
