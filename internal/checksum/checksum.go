// Package checksum provides an integrity transform for the codec chain. The
// encoded form is the value followed by its 8-byte little-endian XXH3 hash.
package checksum

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"cloudshelf/internal/codec"
)

// Marker is the first tag byte of every checksum transform.
const Marker byte = 0x03

// Size is the length of the trailer appended to every value.
const Size = 8

// ErrDataCorruption reports a value whose checksum does not match.
var ErrDataCorruption = fmt.Errorf("checksum mismatch: %w", codec.ErrDataCorruption)

// Type represents a checksum algorithm.
type Type uint8

const (
	// TypeNone disables the checksum.
	TypeNone Type = 0
	// TypeXXH3 is the 64-bit XXH3 hash.
	TypeXXH3 Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeXXH3:
		return "xxh3"
	default:
		return "unknown"
	}
}

// ParseType returns the type named s. The empty string means TypeNone.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "xxh3":
		return TypeXXH3, nil
	}
	return TypeNone, fmt.Errorf("unsupported checksum algorithm %q", s)
}

// Append returns data followed by its checksum.
func Append(data []byte) []byte {
	out := make([]byte, len(data), len(data)+Size)
	copy(out, data)
	return binary.LittleEndian.AppendUint64(out, xxh3.Hash(data))
}

// Verify checks the trailer and returns the value without it.
func Verify(data []byte) ([]byte, error) {
	if len(data) < Size {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the trailer", ErrDataCorruption, len(data))
	}
	n := len(data) - Size
	want := binary.LittleEndian.Uint64(data[n:])
	if got := xxh3.Hash(data[:n]); got != want {
		return nil, fmt.Errorf("%w: got %016x, want %016x", ErrDataCorruption, got, want)
	}
	return data[:n], nil
}

// Transform returns the checksum for t as a chain link.
func Transform(t Type) (codec.Transform, error) {
	switch t {
	case TypeXXH3:
		return codec.Transform{
			Tag:    []byte{Marker, byte(TypeXXH3)},
			Encode: func(b []byte) ([]byte, error) { return Append(b), nil },
			Decode: Verify,
		}, nil
	}
	return codec.Transform{}, fmt.Errorf("unsupported checksum type: %s", t)
}
