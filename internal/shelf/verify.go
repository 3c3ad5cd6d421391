package shelf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrVerifyFailed is returned by Verify when the probe value read back
// differs from the one written.
var ErrVerifyFailed = errors.New("verification value mismatch")

// Verify checks that the shelf can write, read and delete a value by
// round-tripping a randomly named probe key through the codec chain.
func (s *Shelf) Verify(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}

	id := uuid.New()
	key := []byte(".cloudshelf-verify-" + id.String())
	want := id[:]

	if err := s.Set(ctx, key, want); err != nil {
		return fmt.Errorf("unable to write verification key: %w", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		s.Delete(ctx, key)
		return fmt.Errorf("unable to read verification key: %w", err)
	}
	if !bytes.Equal(got, want) {
		s.Delete(ctx, key)
		return ErrVerifyFailed
	}
	if err := s.Delete(ctx, key); err != nil {
		return fmt.Errorf("unable to delete verification key: %w", err)
	}
	s.log.Debug("verified shelf", "key", string(key))
	return nil
}
