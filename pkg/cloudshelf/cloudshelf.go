// Package cloudshelf opens persistent key-value shelves backed by local
// files, SQL tables, object storage buckets or Redis namespaces.
//
// A shelf is opened from a configuration file (TOML or YAML) naming the
// provider and the value transforms, or from a plain path, which opens a
// local bbolt file:
//
//	s, err := cloudshelf.Open(ctx, "shelf.toml", cloudshelf.ModeCreate)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	err = s.Set(ctx, []byte("answer"), []byte("42"))
package cloudshelf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"cloudshelf/internal/checksum"
	"cloudshelf/internal/codec"
	"cloudshelf/internal/compress"
	"cloudshelf/internal/config"
	"cloudshelf/internal/crypto"
	"cloudshelf/internal/logging"
	"cloudshelf/internal/provider"
	"cloudshelf/internal/shelf"
	"cloudshelf/internal/store/memory"
)

type (
	Shelf          = shelf.Shelf
	Mode           = shelf.Mode
	Config         = config.Config
	Chain          = codec.Chain
	MemoryRegistry = memory.Registry
)

const (
	ModeCreate = shelf.ModeCreate
	ModeNew    = shelf.ModeNew
	ModeWrite  = shelf.ModeWrite
	ModeRead   = shelf.ModeRead
)

var (
	ErrKeyNotFound           = shelf.ErrKeyNotFound
	ErrClosed                = shelf.ErrClosed
	ErrReadOnly              = shelf.ErrReadOnly
	ErrStoreDoesNotExist     = shelf.ErrStoreDoesNotExist
	ErrCanNotCreateStore     = shelf.ErrCanNotCreateStore
	ErrClearFailed           = shelf.ErrClearFailed
	ErrInvalidMode           = shelf.ErrInvalidMode
	ErrVerifyFailed          = shelf.ErrVerifyFailed
	ErrSignatureIncompatible = codec.ErrSignatureIncompatible
	ErrEnvelopeCorruption    = codec.ErrEnvelopeCorruption
	ErrDataCorruption        = codec.ErrDataCorruption
	ErrUnknownProvider       = provider.ErrUnknownProvider
	ErrAuth                  = provider.ErrAuth
	ErrInvalidConfig         = config.ErrInvalid
	ErrNoKey                 = crypto.ErrNoKey
	ErrKeyNotDefined         = crypto.ErrKeyNotDefined
)

// ParseMode parses one of c, n, w or r.
func ParseMode(s string) (Mode, error) { return shelf.ParseMode(s) }

// NewMemoryRegistry returns a registry for the memory provider. Shelves
// opened with the same registry and store name share their contents.
func NewMemoryRegistry() *MemoryRegistry { return memory.NewRegistry() }

// Option configures Open and OpenConfig.
type Option func(*options)

type options struct {
	registry   *memory.Registry
	registerer prometheus.Registerer
	key        []byte
	logger     *slog.Logger
}

// WithRegistry backs the memory provider with reg.
func WithRegistry(reg *MemoryRegistry) Option {
	return func(o *options) { o.registry = reg }
}

// WithRegisterer registers backend metrics with reg instead of the
// default Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithKey sets the encryption secret, overriding the configured key.
func WithKey(key []byte) Option {
	return func(o *options) { o.key = key }
}

// WithLogger replaces the shelf's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open opens the shelf at path. Paths ending in .toml, .yaml or .yml are
// configuration files; anything else is a local bbolt file.
func Open(ctx context.Context, path string, mode Mode, opts ...Option) (*Shelf, error) {
	if !config.IsConfigFile(path) {
		return OpenConfig(ctx, LocalConfig(path), mode, opts...)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return OpenConfig(ctx, cfg, mode, opts...)
}

// LocalConfig returns the default configuration pointed at a bbolt file.
func LocalConfig(path string) *Config {
	cfg := config.Defaults()
	cfg.Provider.Options = map[string]string{"path": path, "bucket": "shelf"}
	return cfg
}

// OpenConfig validates cfg, builds its chain and backend and opens the
// shelf.
func OpenConfig(ctx context.Context, cfg *Config, mode Mode, opts ...Option) (*Shelf, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chain, err := buildChain(cfg, o.key)
	if err != nil {
		return nil, err
	}
	backend, err := provider.Create(ctx, cfg, provider.Env{
		Memory:     o.registry,
		Registerer: o.registerer,
	})
	if err != nil {
		return nil, err
	}

	shelfOpts := []shelf.Option{shelf.WithClearConcurrency(cfg.Clear.Concurrency)}
	if o.logger != nil {
		shelfOpts = append(shelfOpts, shelf.WithLogger(o.logger))
	}
	return shelf.Open(ctx, backend, mode, chain, shelfOpts...)
}

// BuildChain returns the value transforms cfg configures. On write values
// are checksummed, then compressed, then encrypted.
func BuildChain(cfg *Config) (*Chain, error) {
	return buildChain(cfg, nil)
}

func buildChain(cfg *Config, key []byte) (*Chain, error) {
	chain := &codec.Chain{}

	if cfg.Logging.TraceValues {
		if err := chain.AddTransform(codec.LoggingTransform(logging.For("values"))); err != nil {
			return nil, err
		}
	}

	sum, err := checksum.ParseType(cfg.Checksum.Algorithm)
	if err != nil {
		return nil, err
	}
	if sum != checksum.TypeNone {
		t, err := checksum.Transform(sum)
		if err != nil {
			return nil, err
		}
		if err := chain.AddTransform(t); err != nil {
			return nil, err
		}
	}

	ct, err := compress.ParseType(cfg.Compression.Algorithm)
	if err != nil {
		return nil, err
	}
	if ct != compress.None {
		c, err := compress.New(ct, cfg.Compression.Level)
		if err != nil {
			return nil, err
		}
		if err := chain.AddTransform(c.Transform()); err != nil {
			return nil, err
		}
	}

	if cfg.Encryption.Algorithm != "" {
		alg, err := crypto.ParseAlgorithm(cfg.Encryption.Algorithm)
		if err != nil {
			return nil, err
		}
		if key == nil {
			if key, err = crypto.ResolveKey(cfg.Encryption.Key, cfg.Encryption.EnvironmentKey); err != nil {
				return nil, err
			}
		}
		c, err := crypto.New(alg, key)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
		if err := chain.AddTransform(c.Transform()); err != nil {
			return nil, err
		}
	}

	return chain, nil
}
