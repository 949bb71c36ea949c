package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
)

// ErrNotSealed is returned when encryption is configured but the stored snapshot is plain.
var ErrNotSealed = errors.New("snapshot is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next ports.SnapshotStore
	// keys holds the active cipher first, then the fallbacks in order.
	keys []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that encrypts snapshots using AES-GCM.
// The inner store only ever sees an envelope carrying the revision and the ciphertext.
// Each ciphertext is bound to its graph ID, so a snapshot copied under another ID
// does not open.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	keys := make([]cipher.AEAD, 0, 1+len(config.FallbackKeys))
	for _, k := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		aead, err := newAEAD(k)
		if err != nil {
			panic(fmt.Sprintf("invalid encryption key: %v", err))
		}
		keys = append(keys, aead)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DecodeKey parses a base64 AES-256 key as found in configuration.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, graphID string, state *domain.State) error {
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	ciphertext, err := m.seal(plainText, graphID)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	// Revision stays visible so replicas can compare snapshots without the key.
	envelope := domain.NewState()
	envelope.Revision = state.Revision
	envelope.Sealed = base64.StdEncoding.EncodeToString(ciphertext)

	return m.next.Save(ctx, graphID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, graphID string) (*domain.State, error) {
	envelope, err := m.next.Load(ctx, graphID)
	if err != nil {
		return nil, err
	}

	// Fail closed: a plain snapshot behind an encrypting store is not trusted.
	if envelope.Sealed == "" {
		return nil, ErrNotSealed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.open(ciphertext, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state: %w", err)
	}

	var realState domain.State
	if err := json.Unmarshal(plainText, &realState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}

	return realState.Normalize(), nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, graphID string) error {
	return m.next.Delete(ctx, graphID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// seal prefixes the ciphertext with its nonce.
func (m *encryptionMiddleware) seal(plaintext []byte, graphID string) ([]byte, error) {
	active := m.keys[0]
	nonce := make([]byte, active.NonceSize(), active.NonceSize()+len(plaintext)+active.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return active.Seal(nonce, nonce, plaintext, []byte(graphID)), nil
}

// open tries the active key, then each fallback key.
func (m *encryptionMiddleware) open(sealed []byte, graphID string) ([]byte, error) {
	for _, aead := range m.keys {
		n := aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], []byte(graphID)); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("no configured key opens the snapshot")
}
