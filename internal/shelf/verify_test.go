package shelf_test

import (
	"context"
	"errors"
	"testing"

	"cloudshelf/internal/codec"
	"cloudshelf/internal/shelf"
	"cloudshelf/internal/store"
	"cloudshelf/internal/store/memory"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()
	r := &recorder{Backend: memory.New()}
	s := open(t, r, shelf.ModeCreate, nil)

	if err := s.Verify(ctx); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if r.sets.Load() != 1 || r.deletes.Load() != 1 {
		t.Errorf("expected one set and one delete, got %d and %d", r.sets.Load(), r.deletes.Load())
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Errorf("probe key left behind: Len = %d", n)
	}
}

func TestVerifyReadOnly(t *testing.T) {
	reg := seeded(t, 0)
	s := open(t, memory.Open(reg, "s"), shelf.ModeRead, nil)
	if err := s.Verify(context.Background()); !errors.Is(err, shelf.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

// corrupting flips the first byte of every stored value after the envelope
// header.
type corrupting struct{ store.Backend }

func (c corrupting) Set(ctx context.Context, key, value []byte) error {
	v := append([]byte(nil), value...)
	if len(v) > codec.HeaderSize {
		v[codec.HeaderSize] ^= 0xff
	}
	return c.Backend.Set(ctx, key, v)
}

func TestVerifyMismatch(t *testing.T) {
	ctx := context.Background()
	s := open(t, corrupting{memory.New()}, shelf.ModeCreate, nil)

	if err := s.Verify(ctx); !errors.Is(err, shelf.ErrVerifyFailed) {
		t.Fatalf("expected ErrVerifyFailed, got %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Errorf("probe key left behind: Len = %d", n)
	}
}
