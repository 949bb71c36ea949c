package resolver_test

import (
	"testing"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/resolver"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, actions ...domain.Action) *domain.State {
	t.Helper()
	s := domain.NewState()
	for _, a := range actions {
		s, _ = domain.Reduce(s, a)
	}
	return s
}

func parse(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(raw))
	require.NoError(t, err)
	return v
}

func edge(src, dst string) domain.Action {
	return domain.AddConnection{Connection: domain.Connection{SourceNodeID: src, TargetNodeID: dst}}
}

func TestResolvedInputs_EndToEnd(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "A"},
		domain.InitializeNode{NodeID: "B", Kind: domain.NodeKindTransform},
		domain.UpsertNodeConfiguration{NodeID: "A", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"items"}}},
		domain.SetTestResult{NodeID: "A", Result: domain.TestResult{
			Success: true,
			Value:   parse(t, `{"items": [{"id": 1}, {"id": 2}], "meta": "x"}`),
		}},
		edge("A", "B"),
	)

	got := resolver.ResolvedInputs(s, "B")
	require.Len(t, got, 1)
	assert.Equal(t, `{"items":[{"id":1},{"id":2}]}`, got["A"].String())

	again := resolver.ResolvedInputs(s, "B")
	assert.True(t, value.Equal(got["A"], again["A"]), "queries must be idempotent")
}

func TestResolvedInputs_OmitsUnready(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "A"},
		domain.InitializeNode{NodeID: "C"},
		domain.InitializeNode{NodeID: "D"},
		domain.InitializeNode{NodeID: "B", Kind: domain.NodeKindTransform},
		domain.UpsertNodeConfiguration{NodeID: "A", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"x"}}},
		domain.UpsertNodeConfiguration{NodeID: "C", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"x"}}},
		domain.SetTestResult{NodeID: "C", Result: domain.TestResult{Success: false, Error: "500"}},
		domain.SetTestResult{NodeID: "D", Result: domain.TestResult{Success: true, Value: parse(t, `{"x":1}`)}},
		edge("A", "B"), edge("C", "B"), edge("D", "B"),
	)

	got := resolver.ResolvedInputs(s, "B")
	assert.NotContains(t, got, "A", "no result")
	assert.NotContains(t, got, "C", "failed result")
	assert.NotContains(t, got, "D", "no selections")
	assert.Empty(t, got)
}

func TestUpstreamNodes(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "Z"},
		domain.InitializeNode{NodeID: "A"},
		domain.InitializeNode{NodeID: "T", Kind: domain.NodeKindTransform},
		domain.AddConnection{Connection: domain.Connection{SourceNodeID: "Z", TargetNodeID: "T", SourceField: "a"}},
		domain.AddConnection{Connection: domain.Connection{SourceNodeID: "A", TargetNodeID: "T"}},
		domain.AddConnection{Connection: domain.Connection{SourceNodeID: "Z", TargetNodeID: "T", SourceField: "b"}},
	)

	ids := func(cfgs []domain.NodeConfiguration) []string {
		out := []string{}
		for _, c := range cfgs {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, []string{"Z", "A"}, ids(resolver.UpstreamNodes(s, "T")), "distinct, in edge order")
	assert.Equal(t, []string{"T"}, ids(resolver.DownstreamNodes(s, "Z")))
	assert.Empty(t, resolver.UpstreamNodes(s, "unknown"))

	removed, _ := domain.Reduce(s, domain.RemoveNode{NodeID: "Z"})
	assert.Equal(t, []string{"A"}, ids(resolver.UpstreamNodes(removed, "T")))
	assert.Len(t, removed.Connections, 1)
}

func TestAvailableOutputs(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "A"},
		domain.InitializeNode{NodeID: "B"},
		domain.InitializeNode{NodeID: "T", Kind: domain.NodeKindTransform},
		domain.UpsertNodeConfiguration{NodeID: "A", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"id", "name"}}},
		edge("A", "T"), edge("B", "T"),
	)

	got := resolver.AvailableOutputs(s, "T")
	assert.Equal(t, map[string][]string{"A": {"id", "name"}, "B": {}}, got)

	got["A"][0] = "mutated"
	assert.Equal(t, "id", s.Configurations["A"].OutputFieldSelections[0], "result must be a copy")
}

func TestTopologicalOrder(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "c"},
		domain.InitializeNode{NodeID: "b"},
		domain.InitializeNode{NodeID: "a"},
		domain.InitializeNode{NodeID: "d"},
		edge("c", "b"), edge("b", "a"), edge("c", "a"),
	)

	order, err := resolver.TopologicalOrder(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a", "d"}, order)

	order, err = resolver.OrderFor(s, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, []string{"b", "c"}, resolver.Ancestors(s, "a"))

	_, err = resolver.OrderFor(s, "nope")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestTopologicalOrder_CycleGuard(t *testing.T) {
	// The reducer refuses cycles; build one by hand to exercise the guard.
	s := domain.NewState()
	s.Configurations["a"] = domain.NewSourceConfiguration("a", nil)
	s.Configurations["b"] = domain.NewSourceConfiguration("b", nil)
	s.Connections = []domain.Connection{
		{SourceNodeID: "a", TargetNodeID: "b"},
		{SourceNodeID: "b", TargetNodeID: "a"},
	}
	_, err := resolver.TopologicalOrder(s)
	assert.ErrorIs(t, err, domain.ErrCycle)
	assert.True(t, resolver.WouldCycle(s, "a", "b"))
}

func TestWouldCycle(t *testing.T) {
	s := build(t,
		domain.InitializeNode{NodeID: "a"},
		domain.InitializeNode{NodeID: "b"},
		domain.InitializeNode{NodeID: "c"},
		edge("a", "b"), edge("b", "c"),
	)
	assert.True(t, resolver.WouldCycle(s, "c", "a"))
	assert.True(t, resolver.WouldCycle(s, "a", "a"))
	assert.False(t, resolver.WouldCycle(s, "a", "c"))
}
