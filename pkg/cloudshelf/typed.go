package cloudshelf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"unicode/utf8"

	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

// ErrInvalidKey is returned by Typed for keys that are not valid UTF-8.
var ErrInvalidKey = errors.New("key is not valid UTF-8")

// ValueCodec converts values of type V to and from bytes.
type ValueCodec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSON encodes values with encoding/json.
type JSON[V any] struct{}

func (JSON[V]) Marshal(v V) ([]byte, error) { return json.Marshal(v) }

func (JSON[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// YAML encodes values with gopkg.in/yaml.v3.
type YAML[V any] struct{}

func (YAML[V]) Marshal(v V) ([]byte, error) { return yaml.Marshal(v) }

func (YAML[V]) Unmarshal(data []byte) (V, error) {
	var v V
	err := yaml.Unmarshal(data, &v)
	return v, err
}

// Proto encodes protobuf messages in the binary wire format. New returns an
// empty message to unmarshal into.
type Proto[V proto.Message] struct {
	New func() V
}

func (Proto[V]) Marshal(v V) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (p Proto[V]) Unmarshal(data []byte) (V, error) {
	v := p.New()
	err := proto.Unmarshal(data, v)
	return v, err
}

// Typed is a view of a shelf with string keys and values of type V.
type Typed[V any] struct {
	s     *Shelf
	codec ValueCodec[V]
}

// NewTyped returns a typed view of s. Closing s closes the view.
func NewTyped[V any](s *Shelf, c ValueCodec[V]) *Typed[V] {
	return &Typed[V]{s: s, codec: c}
}

// Shelf returns the underlying shelf.
func (t *Typed[V]) Shelf() *Shelf { return t.s }

func checkKey(key string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (t *Typed[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	if err := checkKey(key); err != nil {
		return zero, err
	}
	data, err := t.s.Get(ctx, []byte(key))
	if err != nil {
		return zero, err
	}
	v, err := t.codec.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return v, nil
}

func (t *Typed[V]) Set(ctx context.Context, key string, v V) error {
	if err := checkKey(key); err != nil {
		return err
	}
	data, err := t.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return t.s.Set(ctx, []byte(key), data)
}

func (t *Typed[V]) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return t.s.Delete(ctx, []byte(key))
}

func (t *Typed[V]) Contains(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	return t.s.Contains(ctx, []byte(key))
}

// Keys iterates over every key. See Shelf.Keys.
func (t *Typed[V]) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for key, err := range t.s.Keys(ctx) {
			if !yield(string(key), err) {
				return
			}
		}
	}
}

func (t *Typed[V]) Len(ctx context.Context) (int, error) { return t.s.Len(ctx) }
