package shelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"cloudshelf/internal/store"
)

// DefaultClearConcurrency is the number of concurrent deletes used to clear
// a store opened in ModeNew.
func DefaultClearConcurrency() int {
	return min(32, runtime.NumCPU()+4)
}

// reconcile brings the backend in line with mode. It runs once, before the
// shelf is handed out.
func reconcile(ctx context.Context, b store.Backend, mode Mode, concurrency int, log *slog.Logger) error {
	exists, err := b.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking store: %w", err)
	}

	if !exists {
		if !mode.CanCreate() {
			return ErrStoreDoesNotExist
		}
		if err := b.Create(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrCanNotCreateStore, err)
		}
		log.Info("created store", "mode", mode)
		return nil
	}

	if mode.Clears() {
		return clearAll(ctx, b, concurrency, log)
	}
	return nil
}

// clearAll lists every key, then deletes them with at most concurrency
// deletes in flight. A key that vanished after listing counts as deleted;
// any other failure stops the remaining deletes.
func clearAll(ctx context.Context, b store.Backend, concurrency int, log *slog.Logger) error {
	started := time.Now()
	keys, err := store.Keys(ctx, b)
	if err != nil {
		return fmt.Errorf("%w: listing keys: %w", ErrClearFailed, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, key := range keys {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := b.Delete(gctx, key)
			if err == nil || errors.Is(err, store.ErrKeyNotFound) {
				return nil
			}
			return fmt.Errorf("deleting %q: %w", key, err)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("clearing store failed", "keys", len(keys), "error", err)
		return fmt.Errorf("%w: %w", ErrClearFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrClearFailed, err)
	}

	log.Info("cleared store", "keys", len(keys), "duration", time.Since(started))
	return nil
}
