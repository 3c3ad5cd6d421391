package compress

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"cloudshelf/internal/codec"
)

var allTypes = []Type{None, Snappy, Zlib, LZ4, LZ4HC, Zstd}

func sizeTestName(n int) string { return fmt.Sprintf("%dB", n) }

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 10, 100, 1000, 100000}
	for _, typ := range allTypes {
		c, err := New(typ, 0)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", typ, err)
		}
		for _, size := range sizes {
			t.Run(typ.String()+"/"+sizeTestName(size), func(t *testing.T) {
				data := make([]byte, size)
				for i := range data {
					data[i] = byte(i % 251)
				}
				compressed, err := c.Compress(data)
				if err != nil {
					t.Fatalf("Compress failed: %v", err)
				}
				got, err := c.Decompress(compressed)
				if err != nil {
					t.Fatalf("Decompress failed: %v", err)
				}
				if !bytes.Equal(got, data) {
					t.Errorf("Decompressed %d bytes, want %d", len(got), len(data))
				}
			})
		}
	}
}

func TestCompressesRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("hello world "), 100)
	for _, typ := range allTypes[1:] {
		c, err := New(typ, 0)
		if err != nil {
			t.Fatal(err)
		}
		compressed, err := c.Compress(data)
		if err != nil {
			t.Fatal(err)
		}
		if len(compressed) >= len(data) {
			t.Errorf("%s: compressed size %d >= original %d", typ, len(compressed), len(data))
		}
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		typ   Type
		level int
		ok    bool
	}{
		{Zlib, 1, true},
		{Zlib, 9, true},
		{Zlib, 10, false},
		{LZ4, 3, true},
		{LZ4HC, 9, true},
		{LZ4, 10, false},
		{Zstd, 1, true},
		{Zstd, 19, true},
		{Zstd, 23, false},
		{Zstd, -1, false},
		{Snappy, 5, true},
	}
	data := bytes.Repeat([]byte("level test "), 64)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s-%d", tt.typ, tt.level), func(t *testing.T) {
			c, err := New(tt.typ, tt.level)
			if !tt.ok {
				if err == nil {
					t.Fatal("expected level to be rejected")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			compressed, err := c.Compress(data)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Decompress(compressed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestDecompressGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xff}, 16)
	for _, typ := range allTypes[1:] {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := New(typ, 0)
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Decompress(garbage)
			if !errors.Is(err, codec.ErrDataCorruption) {
				t.Fatalf("expected ErrDataCorruption, got %v", err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"", None},
		{"none", None},
		{"snappy", Snappy},
		{"ZLIB", Zlib},
		{"lz4", LZ4},
		{"lz4hc", LZ4HC},
		{" zstd ", Zstd},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if tt.in != "" && got.String() == "" {
			t.Errorf("%s has no name", got)
		}
	}
	if _, err := ParseType("bzip2"); err == nil {
		t.Error("bzip2 should be unsupported")
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := New(Type(0x3), 0); err == nil {
		t.Fatal("expected error for bzip2 id")
	}
	if got := Type(0x42).String(); got != "unknown(66)" {
		t.Errorf("String() = %q", got)
	}
}

func TestTransformTags(t *testing.T) {
	for _, typ := range allTypes[1:] {
		c, err := New(typ, 0)
		if err != nil {
			t.Fatal(err)
		}
		tr := c.Transform()
		if !bytes.Equal(tr.Tag, []byte{Marker, byte(typ)}) {
			t.Errorf("%s tag = %x", typ, tr.Tag)
		}
	}

	none, err := New(None, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tag := none.Transform().Tag; len(tag) != 0 {
		t.Errorf("None should be untagged, got %x", tag)
	}
}

func TestChainDecodesEachAlgorithm(t *testing.T) {
	value := bytes.Repeat([]byte("chained "), 32)
	for _, typ := range allTypes[1:] {
		t.Run(typ.String(), func(t *testing.T) {
			c, err := New(typ, 0)
			if err != nil {
				t.Fatal(err)
			}
			chain, err := codec.NewChain(c.Transform())
			if err != nil {
				t.Fatal(err)
			}
			env, err := chain.Encode(value)
			if err != nil {
				t.Fatal(err)
			}
			got, err := chain.Decode(env)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, value) {
				t.Error("round trip through chain mismatch")
			}

			// A reader configured with another algorithm cannot read it.
			other := Snappy
			if typ == Snappy {
				other = Zstd
			}
			oc, err := New(other, 0)
			if err != nil {
				t.Fatal(err)
			}
			reader, err := codec.NewChain(oc.Transform())
			if err != nil {
				t.Fatal(err)
			}
			if _, err := reader.Decode(env); !errors.Is(err, codec.ErrSignatureIncompatible) {
				t.Fatalf("expected ErrSignatureIncompatible, got %v", err)
			}
		})
	}
}
