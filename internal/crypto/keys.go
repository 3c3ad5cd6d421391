package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every derived cipher key.
const KeySize = 32

var (
	// ErrNoKey is returned when encryption is configured without a key or
	// an environment variable naming one.
	ErrNoKey = errors.New("encryption key not configured")
	// ErrKeyNotDefined is returned when the environment variable holding
	// the key is unset or empty.
	ErrKeyNotDefined = errors.New("encryption key environment variable not defined")
)

// ResolveKey returns the secret to derive cipher keys from: key when set,
// otherwise the value of the environment variable envKey.
func ResolveKey(key, envKey string) ([]byte, error) {
	if key != "" {
		return []byte(key), nil
	}
	if envKey == "" {
		return nil, ErrNoKey
	}
	v, ok := os.LookupEnv(envKey)
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotDefined, envKey)
	}
	return []byte(v), nil
}

// DeriveKey stretches secret into a KeySize key for alg with HKDF-SHA256.
// Each algorithm gets a distinct key from the same secret.
func DeriveKey(secret []byte, alg Algorithm) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoKey
	}
	info := []byte("cloudshelf value key " + alg.String())
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
