// Package storetest is a conformance suite run by every store.Backend
// implementation's tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudshelf/internal/store"
)

// Factory returns a fresh backend. The store it names may or may not exist
// yet; the suite creates it when needed. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Backend

// Run executes the conformance suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"CreateThenExists", testCreateThenExists},
		{"GetMissing", testGetMissing},
		{"SetGet", testSetGet},
		{"Overwrite", testOverwrite},
		{"Delete", testDelete},
		{"DeleteMissing", testDeleteMissing},
		{"ForEachKey", testForEachKey},
		{"ForEachKeyStops", testForEachKeyStops},
		{"Len", testLen},
		{"ValueIsCopied", testValueIsCopied},
		{"Concurrent", testConcurrent},
		{"Sync", testSync},
		{"UseAfterClose", testUseAfterClose},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func created(t *testing.T, b store.Backend) store.Backend {
	t.Helper()
	ctx := context.Background()
	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	if !ok {
		require.NoError(t, b.Create(ctx))
	}
	return b
}

func testCreateThenExists(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	ok, err := b.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "store should exist after Create")
}

func testGetMissing(t *testing.T, b store.Backend) {
	created(t, b)
	_, err := b.Get(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func testSetGet(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	require.NoError(t, b.Set(ctx, []byte("key1"), []byte("val1")))

	got, err := b.Get(ctx, []byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("val1"), got)
}

func testOverwrite(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	require.NoError(t, b.Set(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, b.Set(ctx, []byte("k"), []byte("v2")))

	got, err := b.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	require.NoError(t, b.Set(ctx, []byte("k"), []byte("v")))
	require.NoError(t, b.Delete(ctx, []byte("k")))

	_, err := b.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func testDeleteMissing(t *testing.T, b store.Backend) {
	created(t, b)
	err := b.Delete(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func testForEachKey(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	want := []string{"a", "b", "c/d", "e f"}
	for _, k := range want {
		require.NoError(t, b.Set(ctx, []byte(k), []byte("val-"+k)))
	}

	var got []string
	require.NoError(t, b.ForEachKey(ctx, func(key []byte) error {
		got = append(got, string(key))
		return nil
	}))
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func testForEachKeyStops(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Set(ctx, []byte(fmt.Sprintf("k%d", i)), []byte("v")))
	}

	stop := errors.New("stop")
	calls := 0
	err := b.ForEachKey(ctx, func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func testLen(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 7; i++ {
		require.NoError(t, b.Set(ctx, []byte(fmt.Sprintf("k%d", i)), []byte("v")))
	}
	n, err = b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func testValueIsCopied(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)
	value := []byte("original")
	require.NoError(t, b.Set(ctx, []byte("k"), value))
	value[0] = 'X'

	got, err := b.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := b.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func testConcurrent(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created(t, b)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				key := []byte(fmt.Sprintf("w%d-%d", w, i))
				if err := b.Set(ctx, key, key); err != nil {
					errs <- err
					return
				}
				if _, err := b.Get(ctx, key); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers*10, n)
}

func testSync(t *testing.T, b store.Backend) {
	created(t, b)
	assert.NoError(t, b.Sync(context.Background()))
}

func testUseAfterClose(t *testing.T, b store.Backend) {
	created(t, b)
	require.NoError(t, b.Close())
	_, err := b.Get(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, store.ErrClosed)
}
