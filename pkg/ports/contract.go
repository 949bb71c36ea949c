package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	graphID := "contract-test-graph-" + time.Now().Format("20060102150405")

	sample := func() *domain.State {
		s := domain.NewState()
		for _, a := range []domain.Action{
			domain.InitializeNode{NodeID: "users", Request: &domain.RequestSpec{URL: "https://api.example.com/users"}},
			domain.InitializeNode{NodeID: "pick", Kind: domain.NodeKindTransform},
			domain.UpsertNodeConfiguration{NodeID: "users", Patch: domain.ConfigPatch{OutputFieldSelections: []string{"id", "name"}}},
			domain.AddConnection{Connection: domain.Connection{SourceNodeID: "users", TargetNodeID: "pick"}},
			domain.SetTestResult{NodeID: "users", Result: domain.TestResult{
				RunID:      3,
				Success:    true,
				StatusCode: 200,
				Value: value.Array(value.Object(
					value.Member{Key: "id", Value: value.Int(12345678901234)},
					value.Member{Key: "name", Value: value.String("ada")},
				)),
			}},
		} {
			s, _ = domain.Reduce(s, a)
		}
		return s
	}

	t.Run("Save and Load", func(t *testing.T) {
		state := sample()

		err := store.Save(ctx, graphID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, graphID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Revision, loaded.Revision)
		assert.Equal(t, state.Connections, loaded.Connections)
		assert.Equal(t, []string{"id", "name"}, loaded.Configurations["users"].OutputFieldSelections)
		assert.Equal(t, "https://api.example.com/users", loaded.Configurations["users"].Request.URL)

		result, ok := loaded.TestResults["users"]
		require.True(t, ok)
		assert.Equal(t, uint64(3), result.RunID)
		// Large integers must survive persistence without float rounding.
		assert.True(t, value.Equal(state.TestResults["users"].Value, result.Value), "got %s", result.Value)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		state, _ := domain.Reduce(sample(), domain.RemoveNode{NodeID: "pick"})
		require.NoError(t, store.Save(ctx, graphID, state))

		loaded, err := store.Load(ctx, graphID)
		require.NoError(t, err)
		assert.False(t, loaded.HasNode("pick"))
		assert.Empty(t, loaded.Connections)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+graphID)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, graphID, domain.NewState())
		require.NoError(t, err)

		err = store.Delete(ctx, graphID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, graphID)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound, "Load after Delete should return ErrGraphNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := graphID + "-1"
		id2 := graphID + "-2"
		_ = store.Save(ctx, id1, domain.NewState())
		_ = store.Save(ctx, id2, domain.NewState())

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		graphs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, graphs, id1)
		assert.Contains(t, graphs, id2)
	})
}
