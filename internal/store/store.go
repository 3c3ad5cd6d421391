package store

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is the single not-found kind every backend returns for a
	// missing key. Backends translate their native condition into it.
	ErrKeyNotFound = errors.New("key not found")
	// ErrClosed is returned by operations on a closed backend or shelf.
	ErrClosed = errors.New("store closed")
)

// Backend is a byte-key/byte-value store. A backend represents one named
// store (a bucket, a table, a namespace) that may or may not exist yet:
// Exists and Create manage the store itself, the other methods its entries.
//
// Implementations must be safe for concurrent use. Values returned by Get
// are owned by the caller.
type Backend interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	// ForEachKey calls fn for every key. Iteration stops at the first
	// error returned by fn, which is returned unchanged.
	ForEachKey(ctx context.Context, fn func(key []byte) error) error
	Len(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Sync(ctx context.Context) error
	Close() error
}

// Keys collects every key of b into a slice.
func Keys(ctx context.Context, b Backend) ([][]byte, error) {
	var keys [][]byte
	err := b.ForEachKey(ctx, func(key []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Clone returns a copy of b that does not alias it.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
