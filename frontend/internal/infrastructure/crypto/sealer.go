package crypto

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrKeyLength = errors.New("crypto: key must be 32 bytes")
	ErrTampered  = errors.New("crypto: integrity violation, sealed data was modified or bound to another context")
)

// Sealer protects session material at rest.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte, associatedData []byte) (string, error)
	Open(ctx context.Context, sealed string, associatedData []byte) ([]byte, error)
}

// XChaChaSealer is an XChaCha20-Poly1305 AEAD. The 24-byte nonce is random per
// seal, which is safe for the small number of writes a session file sees.
type XChaChaSealer struct {
	aead cipher.AEAD
}

var _ Sealer = (*XChaChaSealer)(nil)

func NewXChaChaSealer(hexKey string) (*XChaChaSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid key encoding: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeyLength
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead init failure: %w", err)
	}
	return &XChaChaSealer{aead: aead}, nil
}

// GenerateKey returns a fresh hex-encoded key suitable for NewXChaChaSealer.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: key generation failure: %w", err)
	}
	return hex.EncodeToString(key), nil
}

func (s *XChaChaSealer) Seal(ctx context.Context, plaintext []byte, associatedData []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce generation failure: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, associatedData)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *XChaChaSealer) Open(ctx context.Context, sealed string, associatedData []byte) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("crypto: base64 decode failure: %w", err)
	}

	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return nil, errors.New("crypto: ciphertext too short")
	}

	nonce, ciphertext := data[:ns], data[ns:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrTampered
	}
	return plaintext, nil
}
