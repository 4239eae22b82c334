package crypto_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginchat/ginchat/frontend/internal/infrastructure/crypto"
)

func newSealer(t *testing.T) *crypto.XChaChaSealer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := crypto.NewXChaChaSealer(key)
	require.NoError(t, err)
	return s
}

// ==============================================================================
// 1. Round trip
// ==============================================================================

func TestXChaCha_SealOpen_RoundTrip(t *testing.T) {
	s := newSealer(t)
	ctx := context.Background()

	plaintext := []byte(`{"token":"T1","user":{"user_id":1}}`)
	sealed, err := s.Seal(ctx, plaintext, []byte("default"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "T1")

	opened, err := s.Open(ctx, sealed, []byte("default"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestXChaCha_Empty_Plaintext(t *testing.T) {
	s := newSealer(t)
	ctx := context.Background()

	sealed, err := s.Seal(ctx, []byte{}, nil)
	require.NoError(t, err)

	opened, err := s.Open(ctx, sealed, nil)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

// ==============================================================================
// 2. Binding and tampering
// ==============================================================================

func TestXChaCha_Rejects_Other_Profile(t *testing.T) {
	s := newSealer(t)
	ctx := context.Background()

	sealed, err := s.Seal(ctx, []byte("secret"), []byte("alice"))
	require.NoError(t, err)

	_, err = s.Open(ctx, sealed, []byte("bob"))
	assert.ErrorIs(t, err, crypto.ErrTampered)
}

func TestXChaCha_Rejects_Flipped_Byte(t *testing.T) {
	s := newSealer(t)
	ctx := context.Background()

	sealed, err := s.Seal(ctx, []byte("sensitive"), nil)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = s.Open(ctx, base64.RawURLEncoding.EncodeToString(raw), nil)
	assert.ErrorIs(t, err, crypto.ErrTampered)
}

func TestXChaCha_Rejects_Short_Ciphertext(t *testing.T) {
	s := newSealer(t)
	_, err := s.Open(context.Background(), base64.RawURLEncoding.EncodeToString([]byte("short")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestXChaCha_Nonce_Uniqueness(t *testing.T) {
	s := newSealer(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sealed, err := s.Seal(ctx, []byte("same"), []byte("same"))
		require.NoError(t, err)
		require.False(t, seen[sealed], "identical ciphertext at iteration %d", i)
		seen[sealed] = true
	}
}

// ==============================================================================
// 3. Key validation
// ==============================================================================

func TestXChaCha_Key_Validation(t *testing.T) {
	t.Run("short key", func(t *testing.T) {
		_, err := crypto.NewXChaChaSealer(strings.Repeat("ab", 16))
		assert.ErrorIs(t, err, crypto.ErrKeyLength)
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := crypto.NewXChaChaSealer("not-a-valid-hex-string-at-all!!!")
		assert.Error(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := crypto.NewXChaChaSealer("")
		assert.ErrorIs(t, err, crypto.ErrKeyLength)
	})
}
