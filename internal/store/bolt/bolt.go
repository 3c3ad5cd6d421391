package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"cloudshelf/internal/store"
)

var errNoBucket = errors.New("bucket does not exist")

// Store implements store.Backend using one bucket of a bbolt database
// (embedded B+ tree). The bucket is the store: Exists reports whether it is
// present and Create makes it.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open creates or opens a bbolt database at the given path. The bucket is
// not created.
func Open(path, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bolt: bucket name is required")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

// parseError maps bbolt conditions onto the store error kinds.
func parseError(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return store.ErrClosed
	}
	return err
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.ErrKeyNotFound
		}
		v := b.Get(key)
		if v == nil {
			return store.ErrKeyNotFound
		}
		val = store.Clone(v)
		return nil
	})
	return val, parseError(err)
}

func (s *Store) Set(_ context.Context, key, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bolt %q: %w", s.bucket, errNoBucket)
		}
		return b.Put(key, value)
	})
	return parseError(err)
}

func (s *Store) Delete(_ context.Context, key []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil || b.Get(key) == nil {
			return store.ErrKeyNotFound
		}
		return b.Delete(key)
	})
	return parseError(err)
}

// ForEachKey copies the keys out of a read transaction before calling fn,
// so fn may write to the store.
func (s *Store) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, store.Clone(k))
			return nil
		})
	})
	if err != nil {
		return parseError(err)
	}

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Len(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, parseError(err)
}

func (s *Store) Exists(_ context.Context) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(s.bucket) != nil
		return nil
	})
	return ok, parseError(err)
}

func (s *Store) Create(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return nil
	})
	return parseError(err)
}

func (s *Store) Sync(_ context.Context) error {
	return parseError(s.db.Sync())
}

func (s *Store) Close() error {
	return s.db.Close()
}
