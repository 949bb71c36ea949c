package ports

import (
	"context"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/value"
)

// Dispatcher applies actions to a graph. It reports whether the state changed.
type Dispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) bool
}

// GraphReader answers read queries over the current graph snapshot.
type GraphReader interface {
	State() *domain.State
	NodeConfiguration(nodeID string) (domain.NodeConfiguration, bool)
	TestResult(nodeID string) (domain.TestResult, bool)
	ValidationErrors(nodeID string) []domain.ValidationError
	UpstreamNodes(nodeID string) []domain.NodeConfiguration
	AvailableOutputs(nodeID string) map[string][]string
	ResolvedInputs(nodeID string) map[string]value.Value
}

// Graph is the read and write surface used by runners and adapters.
type Graph interface {
	Dispatcher
	GraphReader

	// NextRunID returns a run ID greater than every one handed out before.
	NextRunID() uint64
}
