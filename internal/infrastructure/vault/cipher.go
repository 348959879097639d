// Package vault stores platform credentials encrypted at rest.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/erp/syncengine/internal/domain/integration"
)

// sealVersion prefixes every ciphertext so the format can change later
const sealVersion byte = 1

var (
	ErrInvalidKey        = errors.New("vault: master key must be 32 bytes")
	ErrMalformedCipher   = errors.New("vault: malformed ciphertext")
	ErrDecryptionFailure = errors.New("vault: decryption failed")
)

// XChaCha20Cipher implements integration.Cipher with XChaCha20-Poly1305.
// Output layout: version byte, 24-byte random nonce, sealed box.
type XChaCha20Cipher struct {
	aead cipher.AEAD
}

var _ integration.Cipher = (*XChaCha20Cipher)(nil)

// NewCipher creates a cipher from a raw 32-byte key
func NewCipher(key []byte) (*XChaCha20Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &XChaCha20Cipher{aead: aead}, nil
}

// NewCipherFromBase64 creates a cipher from a standard base64 encoded key
func NewCipherFromBase64(encoded string) (*XChaCha20Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewCipher(key)
}

// Seal implements integration.Cipher
func (c *XChaCha20Cipher) Seal(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+c.aead.Overhead())
	out[0] = sealVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, fmt.Errorf("vault: nonce: %w", err)
	}
	return c.aead.Seal(out, out[1:], plaintext, aad), nil
}

// Open implements integration.Cipher
func (c *XChaCha20Cipher) Open(ciphertext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < 1+nonceSize+c.aead.Overhead() || ciphertext[0] != sealVersion {
		return nil, ErrMalformedCipher
	}
	nonce := ciphertext[1 : 1+nonceSize]
	plain, err := c.aead.Open(nil, nonce, ciphertext[1+nonceSize:], aad)
	if err != nil {
		return nil, ErrDecryptionFailure
	}
	return plain, nil
}
