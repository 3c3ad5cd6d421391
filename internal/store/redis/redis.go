// Package redis implements store.Backend on a Redis server. A namespace is
// the store: it exists once its marker key has been written, and every value
// lives at <namespace>:k:<key>.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gomodule/redigo/redis"

	"cloudshelf/internal/logging"
	"cloudshelf/internal/store"
)

const scanCount = 100

var log = logging.For("redis")

// PoolOptions configures NewPool.
type PoolOptions struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxIdle      int
	MaxActive    int
	IdleTimeout  time.Duration
}

// NewPool returns a connection pool for opts.Addr. Connections are
// authenticated and switched to opts.DB when dialed.
func NewPool(opts PoolOptions) *redis.Pool {
	return &redis.Pool{
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			started := time.Now()
			conn, err := redis.DialContext(ctx, "tcp", opts.Addr,
				redis.DialPassword(opts.Password),
				redis.DialDatabase(opts.DB),
				redis.DialConnectTimeout(opts.DialTimeout),
				redis.DialReadTimeout(opts.ReadTimeout),
				redis.DialWriteTimeout(opts.WriteTimeout),
			)
			if err != nil {
				log.Error("error connecting", "addr", opts.Addr, "error", err)
				return nil, err
			}
			log.Debug("connected", "addr", opts.Addr, "duration", time.Since(started))
			return conn, nil
		},
		MaxIdle:     opts.MaxIdle,
		MaxActive:   opts.MaxActive,
		IdleTimeout: opts.IdleTimeout,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Store holds one namespace. It owns its pool and closes it on Close.
type Store struct {
	pool   *redis.Pool
	ns     string
	closed atomic.Bool
}

// New returns a Store for namespace on pool.
func New(pool *redis.Pool, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("redis: namespace is required")
	}
	return &Store{pool: pool, ns: namespace}, nil
}

func (s *Store) metaKey() string { return s.ns + ":meta" }

func (s *Store) dataPrefix() string { return s.ns + ":k:" }

func (s *Store) dataKey(key []byte) string { return s.dataPrefix() + string(key) }

func (s *Store) conn(ctx context.Context) (redis.Conn, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: getting connection: %w", err)
	}
	return conn, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	val, err := redis.Bytes(conn.Do("GET", s.dataKey(key)))
	if errors.Is(err, redis.ErrNil) {
		return nil, store.ErrKeyNotFound
	}
	return val, err
}

func (s *Store) Set(ctx context.Context, key, value []byte) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", s.dataKey(key), value)
	return err
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := redis.Int(conn.Do("DEL", s.dataKey(key)))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrKeyNotFound
	}
	return nil
}

// ForEachKey collects the namespace with SCAN before calling fn.
func (s *Store) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return err
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

func (s *Store) scan(ctx context.Context) ([][]byte, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	prefix := s.dataPrefix()
	pattern := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	var keys [][]byte
	cursor := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", pattern, "COUNT", scanCount))
		if err != nil {
			return nil, err
		}
		if len(values) != 2 {
			return nil, fmt.Errorf("redis: unexpected SCAN reply of %d elements", len(values))
		}
		if cursor, err = redis.Int(values[0], nil); err != nil {
			return nil, err
		}
		page, err := redis.ByteSlices(values[1], nil)
		if err != nil {
			return nil, err
		}
		for _, name := range page {
			// SCAN may return a key more than once.
			if _, dup := seen[string(name)]; dup || !strings.HasPrefix(string(name), prefix) {
				continue
			}
			seen[string(name)] = struct{}{}
			keys = append(keys, name[len(prefix):])
		}
		if cursor == 0 {
			return keys, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Len scans the namespace; DBSIZE would count other namespaces too.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	return redis.Bool(conn.Do("EXISTS", s.metaKey()))
}

func (s *Store) Create(ctx context.Context) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("SET", s.metaKey(), time.Now().UTC().Format(time.RFC3339), "NX")
	return err
}

// Sync is a no-op: persistence is configured on the server.
func (s *Store) Sync(context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.pool.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
