package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is 1 (signature length) + 8 (payload length, little-endian).
	HeaderSize = 9
	// MaxSignature is the longest signature the 1-byte length field can carry.
	MaxSignature = math.MaxUint8
)

// Envelope is the self-describing wrapper stored in place of a value:
// the chain signature that produced Payload, and Payload itself.
type Envelope struct {
	Signature []byte
	Payload   []byte
}

// MarshalBinary serializes the envelope as
// [1B signature length][8B payload length LE][signature][payload].
func (e Envelope) MarshalBinary() ([]byte, error) {
	if len(e.Signature) > MaxSignature {
		return nil, fmt.Errorf("%w: %d > %d", ErrSignatureTooLong, len(e.Signature), MaxSignature)
	}

	buf := make([]byte, HeaderSize+len(e.Signature)+len(e.Payload))
	buf[0] = byte(len(e.Signature))
	binary.LittleEndian.PutUint64(buf[1:HeaderSize], uint64(len(e.Payload)))
	n := copy(buf[HeaderSize:], e.Signature)
	copy(buf[HeaderSize+n:], e.Payload)
	return buf, nil
}

// ParseEnvelope decodes data produced by MarshalBinary. The returned
// signature and payload alias data.
func ParseEnvelope(data []byte) (Envelope, error) {
	if len(data) < HeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrEnvelopeCorruption, len(data))
	}

	sigLen := int(data[0])
	payloadLen := binary.LittleEndian.Uint64(data[1:HeaderSize])
	rest := data[HeaderSize:]

	if sigLen > len(rest) {
		return Envelope{}, fmt.Errorf("%w: signature length %d overruns %d remaining bytes", ErrEnvelopeCorruption, sigLen, len(rest))
	}
	rest = rest[sigLen:]
	if payloadLen != uint64(len(rest)) {
		return Envelope{}, fmt.Errorf("%w: payload length %d, %d bytes remaining", ErrEnvelopeCorruption, payloadLen, len(rest))
	}

	return Envelope{
		Signature: data[HeaderSize : HeaderSize+sigLen],
		Payload:   rest,
	}, nil
}
