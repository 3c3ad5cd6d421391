package codec_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"cloudshelf/internal/codec"
)

func TestEnvelopeLayout(t *testing.T) {
	env := codec.Envelope{Signature: []byte("ba"), Payload: []byte("4212")}
	data, err := env.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{2, 4, 0, 0, 0, 0, 0, 0, 0, 'b', 'a', '4', '2', '1', '2'}
	if !bytes.Equal(data, want) {
		t.Fatalf("layout mismatch:\n got %v\nwant %v", data, want)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := codec.Envelope{Signature: []byte{0x01, 0x07}, Payload: []byte("hello cloudshelf")}
	data, err := env.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	got, err := codec.ParseEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Signature, env.Signature) || !bytes.Equal(got.Payload, env.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, env)
	}
}

func TestEnvelopeEmpty(t *testing.T) {
	data, err := codec.Envelope{}.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != codec.HeaderSize {
		t.Fatalf("empty envelope: got %d bytes, want %d", len(data), codec.HeaderSize)
	}
	env, err := codec.ParseEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.Signature) != 0 || len(env.Payload) != 0 {
		t.Fatalf("expected empty envelope, got %+v", env)
	}
}

func TestEnvelopeSignatureTooLong(t *testing.T) {
	_, err := codec.Envelope{Signature: make([]byte, codec.MaxSignature+1)}.MarshalBinary()
	if !errors.Is(err, codec.ErrSignatureTooLong) {
		t.Fatalf("expected ErrSignatureTooLong, got %v", err)
	}
}

func TestParseEnvelopeCorrupt(t *testing.T) {
	header := func(sigLen byte, payloadLen uint64) []byte {
		h := make([]byte, codec.HeaderSize)
		h[0] = sigLen
		binary.LittleEndian.PutUint64(h[1:], payloadLen)
		return h
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"short header", []byte{0, 1, 2, 3}},
		{"signature overrun", append(header(4, 0), 'a', 'b')},
		{"payload overrun", append(header(1, 10), 'a', 'x', 'y')},
		{"huge payload length", append(header(0, ^uint64(0)), 'x')},
		{"trailing bytes", append(header(1, 1), 'a', 'x', 'y')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.ParseEnvelope(tt.data)
			if !errors.Is(err, codec.ErrEnvelopeCorruption) {
				t.Fatalf("expected ErrEnvelopeCorruption, got %v", err)
			}
		})
	}
}
