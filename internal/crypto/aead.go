// Package crypto provides the authenticated encryption transform for the
// codec chain.
//
// An encrypted value is laid out as:
//
//	offset 0     : 1 byte  algorithm id
//	offset 1     : 1 byte  authentication tag length T
//	offset 2     : 1 byte  nonce length N
//	offset 3     : T bytes authentication tag
//	offset 3+T   : N bytes nonce
//	offset 3+T+N : ciphertext
//
// The algorithm id is authenticated as additional data. A fresh random nonce
// is drawn for every value.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"cloudshelf/internal/codec"
)

// Marker is the first tag byte of every encryption transform.
const Marker byte = 0x02

const headerSize = 3

var (
	// ErrDataCorruption reports an encrypted value that failed
	// authentication or could not be parsed.
	ErrDataCorruption = fmt.Errorf("encrypted value: %w", codec.ErrDataCorruption)
	// ErrUnknownAlgorithm is returned for algorithm names or ids this
	// package does not implement.
	ErrUnknownAlgorithm = errors.New("unknown encryption algorithm")
)

// Algorithm identifies an AEAD construction. Values are stored in tags and
// in every encrypted value and must not change.
type Algorithm uint8

const (
	AES256GCM         Algorithm = 1
	ChaCha20Poly1305  Algorithm = 2
	XChaCha20Poly1305 Algorithm = 3
)

func (a Algorithm) String() string {
	switch a {
	case AES256GCM:
		return "aes256"
	case ChaCha20Poly1305:
		return "chacha20"
	case XChaCha20Poly1305:
		return "xchacha20"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm returns the algorithm named s.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aes256", "aes-256-gcm":
		return AES256GCM, nil
	case "chacha20", "chacha20-poly1305":
		return ChaCha20Poly1305, nil
	case "xchacha20", "xchacha20-poly1305":
		return XChaCha20Poly1305, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Cipher encrypts values with one algorithm and key. It is safe for
// concurrent use.
type Cipher struct {
	alg  Algorithm
	aead cipher.AEAD
}

// New derives a key for alg from secret and returns a Cipher.
func New(alg Algorithm, secret []byte) (*Cipher, error) {
	key, err := DeriveKey(secret, alg)
	if err != nil {
		return nil, err
	}

	var aead cipher.AEAD
	switch alg {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("aes: %w", err)
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("gcm: %w", err)
		}
	case ChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		aead, err = chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, uint8(alg))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", alg, err)
	}
	return &Cipher{alg: alg, aead: aead}, nil
}

// Algorithm returns the cipher's algorithm.
func (c *Cipher) Algorithm() Algorithm { return c.alg }

// Tag returns the chain tag for the cipher's algorithm.
func (c *Cipher) Tag() []byte { return []byte{Marker, byte(c.alg)} }

// Transform returns the cipher as a chain link.
func (c *Cipher) Transform() codec.Transform {
	return codec.Transform{Tag: c.Tag(), Encode: c.Encrypt, Decode: c.Decrypt}
}

// Encrypt seals plaintext under a random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	tagLen := c.aead.Overhead()
	nonceLen := c.aead.NonceSize()

	out := make([]byte, headerSize+tagLen+nonceLen, headerSize+tagLen+nonceLen+len(plaintext)+tagLen)
	out[0] = byte(c.alg)
	out[1] = byte(tagLen)
	out[2] = byte(nonceLen)
	nonce := out[headerSize+tagLen:]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext||tag; the tag is moved in front of the nonce.
	sealed := c.aead.Seal(out, nonce, plaintext, out[:1])
	ctEnd := len(sealed) - tagLen
	copy(sealed[headerSize:headerSize+tagLen], sealed[ctEnd:])
	return sealed[:ctEnd], nil
}

// Decrypt verifies and opens a value produced by Encrypt. Any mismatch in
// the header, tag or ciphertext yields ErrDataCorruption.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrDataCorruption, len(data))
	}
	alg, tagLen, nonceLen := Algorithm(data[0]), int(data[1]), int(data[2])
	if alg != c.alg {
		return nil, fmt.Errorf("%w: algorithm %s, cipher is %s", ErrDataCorruption, alg, c.alg)
	}
	if tagLen != c.aead.Overhead() || nonceLen != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: tag length %d nonce length %d", ErrDataCorruption, tagLen, nonceLen)
	}
	if len(data) < headerSize+tagLen+nonceLen {
		return nil, fmt.Errorf("%w: truncated", ErrDataCorruption)
	}

	tag := data[headerSize : headerSize+tagLen]
	nonce := data[headerSize+tagLen : headerSize+tagLen+nonceLen]
	ciphertext := data[headerSize+tagLen+nonceLen:]

	sealed := make([]byte, 0, len(ciphertext)+tagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := c.aead.Open(sealed[:0], nonce, sealed, data[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataCorruption, err)
	}
	return plaintext, nil
}
