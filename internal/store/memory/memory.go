// Package memory implements store.Backend on a Go map. It backs tests and
// short-lived shelves.
//
// A Store opened on a Registry shares its contents with every other Store
// opened on the same registry under the same name, so data outlives a single
// open/close cycle for as long as the registry is kept alive.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloudshelf/internal/store"
)

// Registry holds named in-memory stores. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*table)}
}

// Names returns the names of the stores created in the registry, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop forgets the named store. Stores already attached to it keep their
// data until closed.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

func (r *Registry) lookup(name string) *table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[name]
}

func (r *Registry) create(name string) *table {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.stores[name]
	if !ok {
		t = newTable()
		r.stores[name] = t
	}
	return t
}

type table struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func newTable() *table {
	return &table{entries: make(map[string][]byte)}
}

// Store implements store.Backend in memory.
type Store struct {
	reg  *Registry
	name string

	mu     sync.Mutex
	t      *table
	closed bool
}

// New returns a standalone store that always exists and is discarded on
// Close.
func New() *Store {
	return &Store{t: newTable()}
}

// Open returns a store bound to name in reg. It exists once any store
// opened on reg under name has been created.
func Open(reg *Registry, name string) *Store {
	return &Store{reg: reg, name: name, t: reg.lookup(name)}
}

func (s *Store) table() (*table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	if s.t == nil && s.reg != nil {
		s.t = s.reg.lookup(s.name)
	}
	if s.t == nil {
		return nil, fmt.Errorf("memory store %q has not been created", s.name)
	}
	return s.t, nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	t, err := s.table()
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[string(key)]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return store.Clone(v), nil
}

func (s *Store) Set(_ context.Context, key, value []byte) error {
	t, err := s.table()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[string(key)] = store.Clone(value)
	return nil
}

func (s *Store) Delete(_ context.Context, key []byte) error {
	t, err := s.table()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[string(key)]; !ok {
		return store.ErrKeyNotFound
	}
	delete(t.entries, string(key))
	return nil
}

// ForEachKey iterates over a snapshot of the keys, so fn may modify the
// store.
func (s *Store) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	t, err := s.table()
	if err != nil {
		return err
	}
	t.mu.RLock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	t.mu.RUnlock()

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Len(_ context.Context) (int, error) {
	t, err := s.table()
	if err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries), nil
}

func (s *Store) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	if s.t != nil {
		return true, nil
	}
	return s.reg != nil && s.reg.lookup(s.name) != nil, nil
}

func (s *Store) Create(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if s.t == nil {
		s.t = s.reg.create(s.name)
	}
	return nil
}

func (s *Store) Sync(_ context.Context) error {
	_, err := s.table()
	return err
}

// Close detaches the store. Data in a registry is kept.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.t = nil
	return nil
}
