package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"testing"

	"github.com/aretw0/nodeflow/pkg/adapters/memory"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/persistence/middleware"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretGraph() *domain.State {
	s := domain.NewState()
	s, _ = domain.Reduce(s, domain.InitializeNode{NodeID: "users", Request: &domain.RequestSpec{
		URL:     "https://api.example.com/users",
		Headers: map[string]string{"Authorization": "Bearer my-secret-sauce", "Accept": "application/json"},
	}})
	return s
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	key := generateKey(t)
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlyingStore)

	ctx := context.Background()
	original := secretGraph()

	require.NoError(t, secureStore.Save(ctx, "g", original))

	// The inner store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, stored.Configurations)
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, original.Revision, stored.Revision)
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "my-secret-sauce")

	loaded, err := secureStore.Load(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, "Bearer my-secret-sauce", loaded.Configurations["users"].Request.Headers["Authorization"])
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	ctx := context.Background()

	require.NoError(t, secureStoreOld.Save(ctx, "g", secretGraph()))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "g")
	require.NoError(t, err, "fallback key must decrypt")
	assert.True(t, loaded.HasNode("users"))

	require.NoError(t, secureStoreNew.Save(ctx, "g", loaded))

	_, err = secureStoreOld.Load(ctx, "g")
	assert.Error(t, err, "old key alone must not decrypt data sealed with the new key")
}

func TestEncryptionMiddleware_FailsClosedOnPlainSnapshot(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, "g", secretGraph()))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(ctx, "g")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)

	_, err = secureStore.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)
}

func TestEncryptionMiddleware_BoundToGraphID(t *testing.T) {
	underlyingStore := NewMockStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	ctx := context.Background()

	require.NoError(t, secureStore.Save(ctx, "a", secretGraph()))
	envelope, err := underlyingStore.Load(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, underlyingStore.Save(ctx, "b", envelope))

	_, err = secureStore.Load(ctx, "b")
	assert.Error(t, err)
	_, err = secureStore.Load(ctx, "a")
	assert.NoError(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    generateKey(t),
			FallbackKeys: [][]byte{[]byte("short")},
		})
	})
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunSnapshotStoreContract(t, store)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
	_, err = middleware.DecodeKey("%%%")
	assert.Error(t, err)
}
