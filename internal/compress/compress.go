// Package compress provides compression transforms for the codec chain.
//
// Each transform is tagged with the chain's compression marker followed by a
// 1-byte algorithm id, so a value records which algorithm compressed it.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"cloudshelf/internal/codec"
)

// Marker is the first tag byte of every compression transform.
const Marker byte = 0x01

// Type represents a compression algorithm. Values are stored in tags and
// must not change.
type Type uint8

const (
	// None disables compression.
	None Type = 0x0

	// Snappy uses Google Snappy block compression.
	Snappy Type = 0x1

	// Zlib uses zlib (deflate with a zlib header).
	Zlib Type = 0x2

	// LZ4 uses the LZ4 frame format at fast speed.
	LZ4 Type = 0x4

	// LZ4HC uses the LZ4 frame format at high compression.
	LZ4HC Type = 0x5

	// Zstd uses Zstandard.
	Zstd Type = 0x7
)

// String returns the configuration name of the compression type.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zlib:
		return "zlib"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseType returns the type named s. The empty string means None.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "zlib":
		return Zlib, nil
	case "lz4":
		return LZ4, nil
	case "lz4hc":
		return LZ4HC, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("unsupported compression algorithm %q", s)
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// Compressor compresses with one algorithm at one level. It is safe for
// concurrent use.
type Compressor struct {
	typ   Type
	level int

	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// New returns a Compressor for t. A level of 0 selects the algorithm's
// default; Snappy ignores the level. zlib accepts 1-9, lz4 and lz4hc 1-9,
// zstd 1-22.
func New(t Type, level int) (*Compressor, error) {
	c := &Compressor{typ: t, level: level}
	switch t {
	case None, Snappy:
	case Zlib:
		if level < 0 || level > zlib.BestCompression {
			return nil, fmt.Errorf("zlib level %d out of range 1-9", level)
		}
	case LZ4, LZ4HC:
		if level < 0 || level > len(lz4Levels) {
			return nil, fmt.Errorf("%s level %d out of range 1-9", t, level)
		}
	case Zstd:
		if level < 0 || level > 22 {
			return nil, fmt.Errorf("zstd level %d out of range 1-22", level)
		}
		encLevel := zstd.SpeedDefault
		if level > 0 {
			encLevel = zstd.EncoderLevelFromZstd(level)
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		c.zenc, c.zdec = enc, dec
	default:
		return nil, fmt.Errorf("unsupported compression type: %s", t)
	}
	return c, nil
}

// Type returns the algorithm.
func (c *Compressor) Type() Type { return c.typ }

// Tag returns the chain tag for the algorithm.
func (c *Compressor) Tag() []byte { return []byte{Marker, byte(c.typ)} }

// Transform returns the compressor as a chain link. None yields an empty
// tag and identity functions.
func (c *Compressor) Transform() codec.Transform {
	if c.typ == None {
		identity := func(b []byte) ([]byte, error) { return b, nil }
		return codec.Transform{Encode: identity, Decode: identity}
	}
	return codec.Transform{Tag: c.Tag(), Encode: c.Compress, Decode: c.Decompress}
}

// Compress compresses data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.typ {
	case None:
		return data, nil

	case Snappy:
		return snappy.Encode(nil, data), nil

	case Zlib:
		level := zlib.DefaultCompression
		if c.level > 0 {
			level = c.level
		}
		var buf bytes.Buffer
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, fmt.Errorf("zlib writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), nil

	case LZ4:
		level := lz4.Fast
		if c.level > 0 {
			level = lz4Levels[c.level-1]
		}
		return compressLZ4(data, level)

	case LZ4HC:
		level := lz4.Level9
		if c.level > 0 {
			level = lz4Levels[c.level-1]
		}
		return compressLZ4(data, level)

	case Zstd:
		return c.zenc.EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("unsupported compression type: %s", c.typ)
}

func compressLZ4(data []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, fmt.Errorf("lz4 apply level: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Malformed input is reported as
// codec.ErrDataCorruption.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	out, err := c.decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w: %w", c.typ, codec.ErrDataCorruption, err)
	}
	return out, nil
}

func (c *Compressor) decompress(data []byte) ([]byte, error) {
	switch c.typ {
	case None:
		return data, nil

	case Snappy:
		return snappy.Decode(nil, data)

	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)

	case LZ4, LZ4HC:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	case Zstd:
		return c.zdec.DecodeAll(data, nil)
	}
	return nil, fmt.Errorf("unsupported compression type: %s", c.typ)
}
