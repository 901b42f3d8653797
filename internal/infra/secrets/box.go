package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	versionPrefix = "v1:"
	hkdfInfo      = "tenant-secrets/v1"
)

var (
	ErrEmptyMasterKey = errors.New("secrets: master key is empty")
	ErrMalformed      = errors.New("secrets: malformed ciphertext")
	ErrDecrypt        = errors.New("secrets: decryption failed")
)

// Box seals tenant secrets with AES-256-GCM. The AES key is derived from the
// master key with HKDF-SHA256 so the master key never touches the cipher directly.
type Box struct {
	aead cipher.AEAD
}

func NewBox(masterKey string) (*Box, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, ErrEmptyMasterKey
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plaintext. additionalData binds the ciphertext to its owner
// (tenant id + secret name) so rows cannot be swapped between tenants.
func (b *Box) Seal(plaintext, additionalData string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, []byte(plaintext), []byte(additionalData))
	return versionPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed, additionalData string) (string, error) {
	if !strings.HasPrefix(sealed, versionPrefix) {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, versionPrefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns+b.aead.Overhead() {
		return "", ErrMalformed
	}
	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], []byte(additionalData))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
