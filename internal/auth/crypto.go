package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt wraps every failure to open a sealed metadata blob
var ErrDecrypt = errors.New("metadata decrypt failed")

// MetadataCipher seals reminder metadata with AES-256-GCM. A cipher built
// without a key is disabled and passes data through unchanged; callers check
// Enabled to record which form was stored.
type MetadataCipher struct {
	gcm cipher.AEAD
}

// NewMetadataCipher builds a cipher from a 32-byte key. A nil key yields a
// disabled cipher.
func NewMetadataCipher(key []byte) (*MetadataCipher, error) {
	if len(key) == 0 {
		return &MetadataCipher{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("metadata key must be exactly 32 bytes long for AES-256 encryption, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &MetadataCipher{gcm: gcm}, nil
}

// Enabled reports whether a key was configured
func (c *MetadataCipher) Enabled() bool {
	return c != nil && c.gcm != nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext)
func (c *MetadataCipher) Seal(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", nil
	}
	if !c.Enabled() {
		return string(plaintext), nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal
func (c *MetadataCipher) Open(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: no key configured for encrypted metadata", ErrDecrypt)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64: %v", ErrDecrypt, err)
	}
	if len(sealed) < c.gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := sealed[:c.gcm.NonceSize()], sealed[c.gcm.NonceSize():]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}
