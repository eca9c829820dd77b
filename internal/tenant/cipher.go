package tenant

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/relayforge/relayforge/internal/domain"
)

// Cipher seals and opens tenant credentials with AES-GCM. The key is
// supplied by configuration and must be 16, 24, or 32 bytes.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a cipher from a raw key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts a credential to a base64 string. The nonce is prepended to
// the ciphertext.
func (c *Cipher) Seal(cred domain.Credential) (string, error) {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("marshal credential: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed credential.
func (c *Cipher) Open(sealed string) (domain.Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return domain.Credential{}, errors.New("sealed credential too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("open credential: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return cred, nil
}
