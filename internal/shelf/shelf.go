// Package shelf turns a store.Backend into a guarded key-value mapping.
//
// Open reconciles the backend with the requested Mode (create, reject or
// clear) before returning. Values pass through a codec.Chain on the way in
// and out; keys are stored unchanged.
package shelf

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"cloudshelf/internal/codec"
	"cloudshelf/internal/logging"
	"cloudshelf/internal/store"
)

// Option configures Open.
type Option func(*options)

type options struct {
	clearConcurrency int
	logger           *slog.Logger
}

// WithClearConcurrency bounds the deletes in flight while clearing a store
// opened in ModeNew. Values below 1 select DefaultClearConcurrency.
func WithClearConcurrency(n int) Option {
	return func(o *options) { o.clearConcurrency = n }
}

// WithLogger replaces the shelf's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Shelf is an open store. It is safe for concurrent use.
type Shelf struct {
	backend store.Backend
	mode    Mode
	chain   *codec.Chain
	log     *slog.Logger
	closed  atomic.Bool
}

// Open reconciles backend with mode and returns a shelf that owns it. A nil
// chain stores values unchanged inside an empty-signature envelope. If Open
// fails the backend is closed.
func Open(ctx context.Context, backend store.Backend, mode Mode, chain *codec.Chain, opts ...Option) (*Shelf, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clearConcurrency < 1 {
		o.clearConcurrency = DefaultClearConcurrency()
	}
	if o.logger == nil {
		o.logger = logging.For("shelf")
	}
	if chain == nil {
		chain = &codec.Chain{}
	}

	if !mode.valid() {
		backend.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if err := reconcile(ctx, backend, mode, o.clearConcurrency, o.logger); err != nil {
		backend.Close()
		return nil, err
	}

	o.logger.Debug("opened shelf", "mode", mode, "signature", fmt.Sprintf("%x", chain.Signature()))
	return &Shelf{backend: backend, mode: mode, chain: chain, log: o.logger}, nil
}

// Mode returns the mode the shelf was opened with.
func (s *Shelf) Mode() Mode { return s.mode }

func (s *Shelf) writable() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.mode.Writable() {
		return ErrReadOnly
	}
	return nil
}

// Get returns the decoded value stored under key.
func (s *Shelf) Get(ctx context.Context, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	val, err := s.chain.Decode(raw)
	if err != nil {
		s.log.Warn("undecodable value", "key", string(key), "error", err)
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return val, nil
}

// Set encodes value and stores it under key.
func (s *Shelf) Set(ctx context.Context, key, value []byte) error {
	if err := s.writable(); err != nil {
		return err
	}
	env, err := s.chain.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, env); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Shelf) Delete(ctx context.Context, key []byte) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Contains reports whether key holds a value. Errors other than
// ErrKeyNotFound, including decode errors, are returned.
func (s *Shelf) Contains(ctx context.Context, key []byte) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ForEachKey calls fn for every key, in backend order.
func (s *Shelf) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.backend.ForEachKey(ctx, fn)
}

var errStopIteration = errors.New("stop iteration")

// Keys returns an iterator over every key. An error ends the sequence and
// is yielded with a nil key.
func (s *Shelf) Keys(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		err := s.ForEachKey(ctx, func(key []byte) error {
			if !yield(key, nil) {
				return errStopIteration
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(nil, err)
		}
	}
}

// Len returns the number of keys.
func (s *Shelf) Len(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.backend.Len(ctx)
}

// Sync flushes the backend.
func (s *Shelf) Sync(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.backend.Sync(ctx)
}

// Close closes the backend. Closing a closed shelf does nothing.
func (s *Shelf) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.backend.Close()
}
