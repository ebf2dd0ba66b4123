// Package vault encrypts individual profile fields at rest.
//
// Values are sealed with XChaCha20-Poly1305 under a single process-wide key
// and stored as URL-safe base64 of nonce||ciphertext.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	// ErrInvalidKey is returned when the configured key is missing or malformed.
	ErrInvalidKey = errors.New("vault: invalid encryption key")
	// ErrCorrupt is returned when a stored value cannot be decoded or authenticated.
	ErrCorrupt = errors.New("vault: corrupt ciphertext")
)

// FieldCipher seals and opens string fields.
type FieldCipher struct {
	aead cipher.AEAD
}

// New builds a FieldCipher from a raw 32-byte key.
func New(key []byte) (*FieldCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &FieldCipher{aead: aead}, nil
}

// NewFromBase64 decodes a base64 key (standard or URL alphabet, padding optional).
func NewFromBase64(encoded string) (*FieldCipher, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: key not set", ErrInvalidKey)
	}
	key, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return New(key)
}

// GenerateKey returns a fresh random key encoded as URL-safe base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to read random key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values whose base64 padding was
// stripped by an earlier storage layer are accepted.
func (c *FieldCipher) Decrypt(encoded string) (string, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrCorrupt)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return string(plain), nil
}

// decodeBase64 restores missing padding and accepts both alphabets.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if strings.ContainsAny(s, "+/") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.URLEncoding.DecodeString(s)
}
