package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/nodeflow/pkg/adapters/redis"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunSnapshotStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	graphID := "graph-ttl"

	err := store.Save(ctx, graphID, domain.NewState())
	assert.NoError(t, err)

	graphs, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, graphs, graphID)

	// Key expiration in miniredis only follows FastForward.
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, graphID)
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	// Index pruning compares against wall clock time.
	time.Sleep(1200 * time.Millisecond)

	graphs, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, graphs)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-graph", domain.NewState())
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:graph:my-graph"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-graph")
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_IndexGraphID(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	state := domain.NewState()
	state.Revision = 3
	require.NoError(t, store.Save(ctx, "index", state))
	require.NoError(t, store.Save(ctx, "other", domain.NewState()))

	loaded, err := store.Load(ctx, "index")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loaded.Revision)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index", "other"}, list)
}
