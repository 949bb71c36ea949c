package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/persistence/middleware"
	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingMiddleware(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewMaskingMiddleware(middleware.DefaultSecretPatterns)(underlyingStore)
	ctx := context.Background()

	state := secretGraph()
	state, _ = domain.Reduce(state, domain.UpsertNodeConfiguration{NodeID: "users", Patch: domain.ConfigPatch{
		Request: &domain.RequestSpec{
			URL:         "https://api.example.com/users",
			Headers:     map[string]string{"Authorization": "Bearer abc", "Accept": "application/json"},
			QueryParams: map[string]string{"api_key": "k-123", "page": "1"},
		},
	}})
	state, _ = domain.Reduce(state, domain.SetTestResult{NodeID: "users", Result: domain.TestResult{
		Success:         true,
		ResponseHeaders: map[string]string{"Set-Cookie": "sid=1", "Content-Type": "application/json"},
		Value: value.Object(
			value.Member{Key: "user", Value: value.String("ada")},
			value.Member{Key: "session", Value: value.Object(value.Member{Key: "access_token", Value: value.String("t-1")})},
		),
	}})
	state, _ = domain.Reduce(state, domain.InitializeNode{NodeID: "code", Kind: domain.NodeKindTransform})
	state, _ = domain.Reduce(state, domain.UpsertNodeConfiguration{NodeID: "code", Patch: domain.ConfigPatch{
		Operation: &domain.OperationConfig{Operation: domain.OperationCustomCode, Params: map[string]any{
			"customCode": "return data",
			"secret":     "s3",
		}},
	}})

	require.NoError(t, secureStore.Save(ctx, "g", state))

	// Live state keeps its secrets.
	assert.Equal(t, "Bearer abc", state.Configurations["users"].Request.Headers["Authorization"])
	assert.Equal(t, "s3", state.Configurations["code"].Operation.Params["secret"])

	stored, err := underlyingStore.Load(ctx, "g")
	require.NoError(t, err)

	req := stored.Configurations["users"].Request
	assert.Equal(t, middleware.Mask, req.Headers["Authorization"])
	assert.Equal(t, "application/json", req.Headers["Accept"])
	assert.Equal(t, middleware.Mask, req.QueryParams["api_key"])
	assert.Equal(t, "1", req.QueryParams["page"])

	res := stored.TestResults["users"]
	assert.Equal(t, middleware.Mask, res.ResponseHeaders["Set-Cookie"])
	assert.Equal(t, `{"user":"ada","session":{"access_token":"***"}}`, res.Value.String())

	params := stored.Configurations["code"].Operation.Params
	assert.Equal(t, middleware.Mask, params["secret"])
	assert.Equal(t, "return data", params["customCode"])
}

func TestChain(t *testing.T) {
	underlyingStore := NewMockStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewMaskingMiddleware([]string{"(?i)authorization"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "g", secretGraph()))
	stored, err := underlyingStore.Load(ctx, "g")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed, "encryption is innermost")

	loaded, err := store.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Configurations["users"].Request.Headers["Authorization"])
}
