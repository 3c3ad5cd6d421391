package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"

	"cloudshelf/internal/store"
	"cloudshelf/internal/store/storetest"
)

// fakeServer answers the handful of commands the store sends. SCAN pages
// hold three keys so cursors are exercised.
type fakeServer struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeServer() *fakeServer {
	return &fakeServer{data: make(map[string][]byte)}
}

func (f *fakeServer) pool() *redis.Pool {
	return &redis.Pool{
		Dial: func() (redis.Conn, error) { return &fakeConn{srv: f}, nil },
	}
}

type fakeConn struct {
	srv *fakeServer
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error { return nil }
func (c *fakeConn) Send(string, ...interface{}) error { return nil }
func (c *fakeConn) Flush() error { return nil }
func (c *fakeConn) Receive() (interface{}, error) { return nil, nil }

func arg(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	f := c.srv
	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd {
	case "":
		return nil, nil
	case "GET":
		v, ok := f.data[arg(args[0])]
		if !ok {
			return nil, nil
		}
		return bytes.Clone(v), nil
	case "SET":
		key := arg(args[0])
		if len(args) > 2 && arg(args[2]) == "NX" {
			if _, ok := f.data[key]; ok {
				return nil, nil
			}
		}
		f.data[key] = []byte(arg(args[1]))
		return "OK", nil
	case "DEL":
		key := arg(args[0])
		if _, ok := f.data[key]; !ok {
			return int64(0), nil
		}
		delete(f.data, key)
		return int64(1), nil
	case "EXISTS":
		if _, ok := f.data[arg(args[0])]; ok {
			return int64(1), nil
		}
		return int64(0), nil
	case "SCAN":
		return f.scan(args)
	}
	return nil, redis.Error("ERR unknown command '" + cmd + "'")
}

func (f *fakeServer) scan(args []interface{}) (interface{}, error) {
	cursor, err := strconv.Atoi(arg(args[0]))
	if err != nil {
		return nil, err
	}
	pattern := arg(args[2])
	if !strings.HasSuffix(pattern, "*") {
		return nil, errors.New("fake SCAN only supports prefix patterns")
	}
	prefix := unescapeGlob(strings.TrimSuffix(pattern, "*"))

	var names []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	const page = 3
	end := min(cursor+page, len(names))
	var batch []interface{}
	if cursor < len(names) {
		for _, k := range names[cursor:end] {
			batch = append(batch, []byte(k))
		}
	}
	next := end
	if end >= len(names) {
		next = 0
	}
	return []interface{}{[]byte(strconv.Itoa(next)), batch}, nil
}

func unescapeGlob(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func newStore(t *testing.T, srv *fakeServer, ns string) *Store {
	t.Helper()
	s, err := New(srv.pool(), ns)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return newStore(t, newFakeServer(), "shelf")
	})
}

func TestNewRequiresNamespace(t *testing.T) {
	if _, err := New(newFakeServer().pool(), ""); err == nil {
		t.Fatal("expected error for empty namespace")
	}
}

func TestNamespaceLayout(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	s := newStore(t, srv, "app")

	ok, err := s.Exists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("namespace should not exist before Create")
	}
	if err := s.Create(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok := srv.data["app:meta"]; !ok {
		t.Fatal("Create should write the marker key")
	}
	if string(srv.data["app:k:k"]) != "v" {
		t.Fatalf("value stored under unexpected key: %v", srv.data)
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("marker key must not be counted, Len = %d", n)
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	a := newStore(t, srv, "a")
	b := newStore(t, srv, "a*")
	for _, s := range []*Store{a, b} {
		if err := s.Create(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Set(ctx, []byte("x"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, []byte("y"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	var keys []string
	if err := b.ForEachKey(ctx, func(k []byte) error {
		keys = append(keys, string(k))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "y" {
		t.Fatalf("namespace a* saw %q", keys)
	}
}

func TestScanPages(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newFakeServer(), "shelf")
	if err := s.Create(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := s.Set(ctx, []byte(fmt.Sprintf("k%02d", i)), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("Len = %d across SCAN pages, want 10", n)
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain:k:", "plain:k:"},
		{"a*b", `a\*b`},
		{"q?[x]", `q\?\[x\]`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeGlob(tt.in); got != tt.want {
			t.Errorf("escapeGlob(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
