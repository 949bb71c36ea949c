package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/nodeflow/internal/config"
	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGraph(t *testing.T, rt *Runtime) {
	t.Helper()
	ctx := context.Background()
	b := dsl.New()
	b.Transform("seed").Lua(`return {token = "s3cret", name = "ada"}`)
	require.NoError(t, b.Apply(ctx, rt.Engine))
	res, err := rt.Engine.Run(ctx, "seed")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
}

func TestNewRuntime_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Run.ReadOnly = true

	rt, err := NewRuntime(context.Background(), &cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Store)
	seedGraph(t, rt)

	// Read-only blocks mutating requests.
	b := dsl.New()
	b.Source("create").Post("http://127.0.0.1:1/items", `{}`)
	require.NoError(t, b.Apply(context.Background(), rt.Engine))
	res, err := rt.Engine.Run(context.Background(), "create")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestNewRuntime_FileWithSecurity(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

	cfg := config.Default()
	cfg.GraphID = "secure"
	cfg.Store.Backend = config.BackendFile
	cfg.Store.Path = dir
	cfg.Security.Mask = true
	cfg.Security.EncryptionKey = key

	rt, err := NewRuntime(context.Background(), &cfg, logging.NewNop())
	require.NoError(t, err)
	seedGraph(t, rt)
	require.NoError(t, rt.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "secure.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ada")

	reopened, err := NewRuntime(context.Background(), &cfg, logging.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	res, ok := reopened.Engine.TestResult("seed")
	require.True(t, ok)
	assert.Contains(t, res.Value.String(), `"name":"ada"`)
	assert.NotContains(t, res.Value.String(), "s3cret")
}

func TestNewRuntime_RedisWithLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := config.Default()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Lock = true

	rt, err := NewRuntime(context.Background(), &cfg, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	seedGraph(t, rt)
	ids, err := rt.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, ids)
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "lock:", "lock must be released after dispatch")
	}
}

func TestNewRuntime_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{
			name:   "Unknown Backend",
			mutate: func(c *config.Config) { c.Store.Backend = "tape" },
			errMsg: "unknown store backend",
		},
		{
			name:   "Bad Key",
			mutate: func(c *config.Config) { c.Security.EncryptionKey = "short" },
			errMsg: "invalid encryption key",
		},
		{
			name: "Bad Fallback Key",
			mutate: func(c *config.Config) {
				c.Security.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
				c.Security.FallbackKeys = []string{"nope"}
			},
			errMsg: "invalid fallback key 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			_, err := NewRuntime(context.Background(), &cfg, logging.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, []domain.TestResult{
		{NodeID: "a", RunID: 1, Success: true},
		{NodeID: "b", RunID: 2, ErrorType: "network", Error: "connection refused"},
	})
	out := buf.String()
	assert.Contains(t, out, "a run=1")
	assert.Contains(t, out, "b run=2 network: connection refused")
}
