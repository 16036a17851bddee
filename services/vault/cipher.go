package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformedCiphertext marks armored blobs that are not valid base64 or
	// are too short to carry a nonce.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrIntegrity marks ciphertext that fails GCM authentication, whether
	// from corruption or a key mismatch.
	ErrIntegrity = errors.New("ciphertext failed authentication")
)

// Cipher seals credential secrets with AES-256-GCM. The armored form is
// base64(nonce || ciphertext || tag) so it fits a text column.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key Key) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce gen: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(armored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(armored)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrMalformedCiphertext
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}
