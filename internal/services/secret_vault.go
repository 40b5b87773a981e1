package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretVault seals HTLC secrets at rest so a database dump alone cannot
// leak a preimage. Sealed form is base64(nonce || ciphertext).
type SecretVault struct {
	key []byte
}

// NewSecretVault creates a vault from a 32-byte hex key
func NewSecretVault(hexKey string) (*SecretVault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid vault seal key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &SecretVault{key: key}, nil
}

// Seal encrypts a secret for storage
func (v *SecretVault) Seal(secret []byte) (string, error) {
	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, secret, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts a sealed secret
func (v *SecretVault) Unseal(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("invalid sealed secret encoding: %w", err)
	}

	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed secret too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	secret, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal secret: %w", err)
	}
	return secret, nil
}
