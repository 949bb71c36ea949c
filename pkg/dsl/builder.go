package dsl

import (
	"context"
	"fmt"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
)

// Builder manages the graph construction.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
	edges []domain.Connection
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Source adds a request node. If the node already exists, it returns the existing builder.
func (b *Builder) Source(id string) *NodeBuilder {
	nb := b.Add(id)
	if nb.cfg.Kind != domain.NodeKindSource {
		nb.request()
	}
	return nb
}

// Transform adds a data operation node, filter_fields by default.
// If the node already exists, it returns the existing builder.
func (b *Builder) Transform(id string) *NodeBuilder {
	nb := b.Add(id)
	if nb.cfg.Kind != domain.NodeKindTransform {
		nb.operation(domain.OperationFilterFields)
	}
	return nb
}

// Add creates a new node in the graph, a GET source until configured otherwise.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		cfg:     domain.NewSourceConfiguration(id, nil),
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Connect adds an edge between two nodes.
func (b *Builder) Connect(src, dst string) *Builder {
	b.connect(src, dst)
	return b
}

// Link adds an edge carrying source and target field names.
func (b *Builder) Link(conn domain.Connection) *Builder {
	b.edges = append(b.edges, conn)
	return b
}

func (b *Builder) connect(src, dst string) {
	b.Link(domain.Connection{SourceNodeID: src, TargetNodeID: dst})
}

// Actions compiles the graph into the actions that recreate it, in the
// order nodes and edges were added. Every node is a full upsert, so replaying
// the actions over a graph that already matches changes nothing.
func (b *Builder) Actions() []domain.Action {
	actions := make([]domain.Action, 0, len(b.order)+len(b.edges))
	for _, id := range b.order {
		actions = append(actions, domain.UpsertNodeConfiguration{NodeID: id, Patch: PatchFor(b.nodes[id].cfg)})
	}
	for _, e := range b.edges {
		actions = append(actions, domain.AddConnection{Connection: e})
	}
	return actions
}

// Build applies the actions to an empty state. Edges the graph refuses
// (unknown nodes, self loops, duplicates or cycles) are reported as errors.
func (b *Builder) Build() (*domain.State, error) {
	state := domain.NewState()
	for _, a := range b.Actions() {
		next, changed := domain.Reduce(state, a)
		if conn, ok := a.(domain.AddConnection); ok && !changed {
			return nil, fmt.Errorf("connection %s -> %s rejected", conn.Connection.SourceNodeID, conn.Connection.TargetNodeID)
		}
		state = next
	}
	return state, nil
}

// Apply validates the graph and dispatches its actions to d.
func (b *Builder) Apply(ctx context.Context, d ports.Dispatcher) error {
	if _, err := b.Build(); err != nil {
		return err
	}
	for _, a := range b.Actions() {
		d.Dispatch(ctx, a)
	}
	return nil
}

// PatchFor returns the patch that sets every user-authored field of cfg.
func PatchFor(cfg domain.NodeConfiguration) domain.ConfigPatch {
	kind := cfg.Kind
	label := cfg.Label
	return domain.ConfigPatch{
		Kind:                  &kind,
		Label:                 &label,
		Request:               cfg.Request,
		Operation:             cfg.Operation,
		OutputFieldSelections: cfg.OutputFieldSelections,
		InputMappings:         cfg.InputMappings,
		ClearSelections:       len(cfg.OutputFieldSelections) == 0,
	}
}
