package tenants

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

var ErrInvalidKeyFormat = errors.New("invalid api key format")

var keyPattern = regexp.MustCompile(`^(pk|sk)_(live|test)_([a-z0-9]+(?:-[a-z0-9]+)*)_([0-9a-f]+)$`)

const (
	publicRandomBytes = 8
	secretRandomBytes = 16
	secretPrefixLen   = 16
)

// KeyMode is "live" in production and "test" everywhere else.
func KeyMode(production bool) string {
	if production {
		return "live"
	}
	return "test"
}

func GeneratePublicKey(slug, mode string) (string, error) {
	r, err := randomHex(publicRandomBytes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("pk_%s_%s_%s", mode, slug, r), nil
}

// GenerateSecretKey returns the plaintext key, which is shown once, and its hash.
func GenerateSecretKey(slug, mode string) (plain string, hash string, err error) {
	r, err := randomHex(secretRandomBytes)
	if err != nil {
		return "", "", err
	}
	plain = fmt.Sprintf("sk_%s_%s_%s", mode, slug, r)
	return plain, HashSecretKey(plain), nil
}

func HashSecretKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func VerifySecretKey(plain, storedHash string) bool {
	got := HashSecretKey(plain)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}

// SecretKeyPrefix is the non-sensitive part shown in dashboards.
func SecretKeyPrefix(plain string) string {
	if len(plain) <= secretPrefixLen {
		return plain
	}
	return plain[:secretPrefixLen] + "..."
}

type ParsedKey struct {
	Kind string // pk | sk
	Mode string // live | test
	Slug string
}

func ParseKey(key string) (ParsedKey, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return ParsedKey{}, ErrInvalidKeyFormat
	}
	want := publicRandomBytes * 2
	if m[1] == "sk" {
		want = secretRandomBytes * 2
	}
	if len(m[4]) != want {
		return ParsedKey{}, ErrInvalidKeyFormat
	}
	return ParsedKey{Kind: m[1], Mode: m[2], Slug: m[3]}, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
