// Package sqlite implements store.Backend on a SQLite table. The table is
// the store: Exists reports whether it is present and Create makes it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"cloudshelf/internal/store"
)

var validTable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Store holds one table of a SQLite database.
type Store struct {
	db     *sql.DB
	table  string
	closed atomic.Bool
}

// Open creates or opens a SQLite database at the given path and binds the
// store to table. The table is not created.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path, table string) (*Store, error) {
	if !validTable.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return &Store{db: db, table: table}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) check() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var val []byte
	q := fmt.Sprintf(`SELECT value FROM %q WHERE key = ?`, s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %q (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, s.table)
	res, err := s.db.ExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if n == 0 {
		return store.ErrKeyNotFound
	}
	return nil
}

// ForEachKey reads every key before calling fn. The pool has a single
// connection, so fn could not reach the database while rows were open.
func (s *Store) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	if err := s.check(); err != nil {
		return err
	}
	keys, err := s.keys(ctx)
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

func (s *Store) keys(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %q`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys [][]byte
	for rows.Next() {
		var k []byte
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, s.table)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return n, nil
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, s.table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up table: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Create(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		key   BLOB PRIMARY KEY,
		value BLOB
	) WITHOUT ROWID`, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Sync checkpoints the write-ahead log into the main database file.
func (s *Store) Sync(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
