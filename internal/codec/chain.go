// Package codec implements the transform chain applied to every stored value
// and the binary envelope that records which transforms were applied.
//
// Transforms are applied in registration order on Encode and undone in
// reverse order on Decode. The envelope signature lists the tags of the
// applied transforms in decode order, which lets a reader whose chain gained
// transforms since a value was written still decode that value.
package codec

import (
	"bytes"
	"fmt"
)

// Func transforms a value. It must not retain or modify its input.
type Func func([]byte) ([]byte, error)

// Transform is one reversible link of a chain. An empty Tag marks a
// transform that does not change the stored representation (Decode is the
// identity on what Encode produced, e.g. logging); such transforms are not
// recorded in the signature.
type Transform struct {
	Tag    []byte
	Encode Func
	Decode Func
}

// Chain is an ordered list of transforms. Add must not be called
// concurrently with Encode or Decode; once built, a Chain is safe for
// concurrent use.
type Chain struct {
	encoders  []Transform // registration order
	decoders  []Transform // reverse registration order
	signature []byte      // decoder tags, concatenated
}

// NewChain returns a chain with the given transforms added in order.
func NewChain(transforms ...Transform) (*Chain, error) {
	c := &Chain{}
	for _, t := range transforms {
		if err := c.AddTransform(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a transform. Transforms added later are applied later on
// Encode and earlier on Decode.
func (c *Chain) Add(encode, decode Func, tag []byte) error {
	return c.AddTransform(Transform{Tag: tag, Encode: encode, Decode: decode})
}

// AddTransform registers t. See Add.
func (c *Chain) AddTransform(t Transform) error {
	if t.Encode == nil || t.Decode == nil {
		return fmt.Errorf("transform %x: encode and decode are required", t.Tag)
	}
	if len(c.signature)+len(t.Tag) > MaxSignature {
		return fmt.Errorf("%w: adding %d bytes to %d", ErrSignatureTooLong, len(t.Tag), len(c.signature))
	}
	if len(t.Tag) > 0 {
		for _, d := range c.decoders {
			if len(d.Tag) > 0 && (bytes.HasPrefix(d.Tag, t.Tag) || bytes.HasPrefix(t.Tag, d.Tag)) {
				return fmt.Errorf("%w: %x conflicts with %x", ErrDuplicateTag, t.Tag, d.Tag)
			}
		}
	}

	t.Tag = bytes.Clone(t.Tag)
	c.encoders = append(c.encoders, t)
	c.decoders = append([]Transform{t}, c.decoders...)
	c.signature = append(bytes.Clone(t.Tag), c.signature...)
	return nil
}

// Signature returns the tags of all registered transforms in decode order.
func (c *Chain) Signature() []byte {
	return bytes.Clone(c.signature)
}

// Len returns the number of registered transforms.
func (c *Chain) Len() int {
	return len(c.encoders)
}

// Encode applies every transform in registration order and wraps the result
// in an envelope carrying the chain signature.
func (c *Chain) Encode(data []byte) ([]byte, error) {
	payload := data
	for _, t := range c.encoders {
		out, err := t.Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %x: %w", t.Tag, err)
		}
		payload = out
	}
	return Envelope{Signature: c.signature, Payload: payload}.MarshalBinary()
}

// Decode parses an envelope and undoes the transforms its signature names.
//
// Local decoders are walked in decode order against the incoming signature.
// A decoder is applied when its tag is the next part of the incoming
// signature; a tagged decoder that does not match is skipped, since the value
// was written before that transform was configured. Untagged decoders always
// run. Signature bytes left over once the local chain is exhausted name a
// transform this chain cannot undo.
func (c *Chain) Decode(data []byte) ([]byte, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	incoming := env.Signature
	payload := env.Payload
	for _, t := range c.decoders {
		if len(t.Tag) > 0 {
			if !bytes.HasPrefix(incoming, t.Tag) {
				continue
			}
			incoming = incoming[len(t.Tag):]
		}
		out, err := t.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %x: %w", t.Tag, err)
		}
		payload = out
	}

	if len(incoming) > 0 {
		return nil, fmt.Errorf("%w: unknown tags %x (chain %x)", ErrSignatureIncompatible, incoming, c.signature)
	}
	return bytes.Clone(payload), nil
}
