package codec_test

import (
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"

	"cloudshelf/internal/codec"
	"cloudshelf/internal/logging"
)

func appendByte(b byte) codec.Func {
	return func(x []byte) ([]byte, error) {
		out := make([]byte, len(x)+1)
		copy(out, x)
		out[len(x)] = b
		return out, nil
	}
}

func trimLast(x []byte) ([]byte, error) {
	if len(x) == 0 {
		return nil, errors.New("nothing to trim")
	}
	return x[:len(x)-1], nil
}

func suffixTransform(tag string, b byte) codec.Transform {
	return codec.Transform{Tag: []byte(tag), Encode: appendByte(b), Decode: trimLast}
}

func xorTransform(tag string, key byte) codec.Transform {
	xor := func(x []byte) ([]byte, error) {
		out := make([]byte, len(x))
		for i := range x {
			out[i] = x[i] ^ key
		}
		return out, nil
	}
	return codec.Transform{Tag: []byte(tag), Encode: xor, Decode: xor}
}

func mustChain(t *testing.T, transforms ...codec.Transform) *codec.Chain {
	t.Helper()
	c, err := codec.NewChain(transforms...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestChainOrderAndSignature(t *testing.T) {
	c := &codec.Chain{}
	if err := c.Add(appendByte('1'), trimLast, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(appendByte('2'), trimLast, []byte("b")); err != nil {
		t.Fatal(err)
	}

	data, err := c.Encode([]byte("42"))
	if err != nil {
		t.Fatal(err)
	}
	env, err := codec.ParseEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(env.Payload) != "4212" {
		t.Errorf("payload: got %q, want 4212", env.Payload)
	}
	if string(env.Signature) != "ba" {
		t.Errorf("signature: got %q, want ba", env.Signature)
	}

	got, err := c.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "42" {
		t.Fatalf("decode: got %q, want 42", got)
	}
}

func TestEmptyChain(t *testing.T) {
	c := &codec.Chain{}
	data, err := c.Encode([]byte("plain"))
	if err != nil {
		t.Fatal(err)
	}
	env, err := codec.ParseEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.Signature) != 0 {
		t.Fatalf("empty chain should produce an empty signature, got %x", env.Signature)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "plain" {
		t.Fatalf("got %q, want plain", got)
	}
}

func TestChainRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	chains := [][]codec.Transform{
		nil,
		{xorTransform("x", 0x5a)},
		{suffixTransform("a", 'a'), xorTransform("x", 0x33)},
		{xorTransform("x", 0x11), suffixTransform("s", 0), suffixTransform("t", 0xff)},
	}

	for i, transforms := range chains {
		c := mustChain(t, transforms...)
		for n := 0; n < 50; n++ {
			v := make([]byte, rng.IntN(512))
			for j := range v {
				v[j] = byte(rng.UintN(256))
			}
			data, err := c.Encode(v)
			if err != nil {
				t.Fatalf("chain %d: encode: %v", i, err)
			}
			got, err := c.Decode(data)
			if err != nil {
				t.Fatalf("chain %d: decode: %v", i, err)
			}
			if !bytes.Equal(got, v) {
				t.Fatalf("chain %d: round trip mismatch for %d bytes", i, len(v))
			}
		}
	}
}

func TestSignatureIndependentOfData(t *testing.T) {
	c := mustChain(t, suffixTransform("a", '1'), xorTransform("x", 7))
	for _, v := range [][]byte{nil, []byte("a"), bytes.Repeat([]byte("z"), 1000)} {
		data, err := c.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		env, err := codec.ParseEnvelope(data)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(env.Signature, c.Signature()) {
			t.Fatalf("signature %q differs from chain signature %q", env.Signature, c.Signature())
		}
	}
}

func TestForwardCompatibility(t *testing.T) {
	bare := mustChain(t)
	withA := mustChain(t, suffixTransform("a", '1'))

	fromBare, err := bare.Encode([]byte("v"))
	if err != nil {
		t.Fatal(err)
	}
	fromA, err := withA.Encode([]byte("v"))
	if err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"written by []": fromBare, "written by [A]": fromA} {
		got, err := withA.Decode(data)
		if err != nil {
			t.Fatalf("[A] reading value %s: %v", name, err)
		}
		if string(got) != "v" {
			t.Fatalf("[A] reading value %s: got %q", name, got)
		}
	}

	if _, err := bare.Decode(fromA); !errors.Is(err, codec.ErrSignatureIncompatible) {
		t.Fatalf("[] reading [A] value: expected ErrSignatureIncompatible, got %v", err)
	}
}

func TestTransformAddedLaterIsSkippedForOldValues(t *testing.T) {
	old := mustChain(t, suffixTransform("a", '1'))
	data, err := old.Encode([]byte("42"))
	if err != nil {
		t.Fatal(err)
	}

	// b is applied after a on write, so it is undone first on read.
	newer := mustChain(t, suffixTransform("a", '1'), suffixTransform("b", '2'))
	got, err := newer.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "42" {
		t.Fatalf("got %q, want 42", got)
	}
}

func TestReorderedChainIsIncompatible(t *testing.T) {
	ab := mustChain(t, suffixTransform("a", '1'), suffixTransform("b", '2'))
	ba := mustChain(t, suffixTransform("b", '2'), suffixTransform("a", '1'))

	data, err := ab.Encode([]byte("42"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ba.Decode(data); !errors.Is(err, codec.ErrSignatureIncompatible) {
		t.Fatalf("expected ErrSignatureIncompatible, got %v", err)
	}
}

func TestDecodeCorruptEnvelope(t *testing.T) {
	c := mustChain(t, suffixTransform("a", '1'))
	if _, err := c.Decode([]byte{1, 2}); !errors.Is(err, codec.ErrEnvelopeCorruption) {
		t.Fatalf("expected ErrEnvelopeCorruption, got %v", err)
	}
}

func TestDecodeTransformError(t *testing.T) {
	boom := errors.New("boom")
	c := mustChain(t, codec.Transform{
		Tag:    []byte("f"),
		Encode: func(x []byte) ([]byte, error) { return x, nil },
		Decode: func([]byte) ([]byte, error) { return nil, boom },
	})
	data, err := c.Encode([]byte("v"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(data); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transform error, got %v", err)
	}
}

func TestAddRejectsConflictingTags(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		added    string
	}{
		{"same tag", "ab", "ab"},
		{"prefix of existing", "ab", "a"},
		{"existing is prefix", "a", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustChain(t, suffixTransform(tt.existing, '1'))
			err := c.AddTransform(suffixTransform(tt.added, '2'))
			if !errors.Is(err, codec.ErrDuplicateTag) {
				t.Fatalf("expected ErrDuplicateTag, got %v", err)
			}
			if c.Len() != 1 {
				t.Fatalf("rejected transform should not be registered, len=%d", c.Len())
			}
		})
	}
}

func TestAddUntaggedTransformsRepeatedly(t *testing.T) {
	logger := logging.For("codec-test")
	c := mustChain(t, codec.LoggingTransform(logger), codec.LoggingTransform(logger))
	if len(c.Signature()) != 0 {
		t.Fatalf("untagged transforms must not appear in the signature, got %x", c.Signature())
	}
}

func TestAddSignatureCapacity(t *testing.T) {
	c := &codec.Chain{}
	if err := c.AddTransform(suffixTransform(string(bytes.Repeat([]byte{'x'}, 200)), '1')); err != nil {
		t.Fatal(err)
	}
	err := c.AddTransform(suffixTransform(string(bytes.Repeat([]byte{'y'}, 56)), '2'))
	if !errors.Is(err, codec.ErrSignatureTooLong) {
		t.Fatalf("expected ErrSignatureTooLong, got %v", err)
	}
}

func TestAddRequiresFunctions(t *testing.T) {
	c := &codec.Chain{}
	if err := c.Add(nil, trimLast, []byte("a")); err == nil {
		t.Fatal("expected error for missing encode function")
	}
}

func TestLoggingTransform(t *testing.T) {
	capture := logging.CaptureForTest()
	defer capture.Restore()

	c := mustChain(t, codec.LoggingTransform(logging.For("codec-test")))
	data, err := c.Encode([]byte("12345"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(data); err != nil {
		t.Fatal(err)
	}

	if !capture.Has(slog.LevelDebug, "encoding value") {
		t.Error("expected debug record for encode")
	}
	if !capture.Has(slog.LevelDebug, "decoded value") {
		t.Error("expected debug record for decode")
	}
}
