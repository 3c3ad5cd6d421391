// Package provider builds store backends by name from configuration.
//
// Built-in providers are memory, bolt, sqlite, s3 and redis. Others can be
// made available with Register.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cloudshelf/internal/config"
	"cloudshelf/internal/store"
	"cloudshelf/internal/store/instrument"
	"cloudshelf/internal/store/memory"
)

var (
	// ErrUnknownProvider is matched by UnknownProviderError.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrAuth is returned when a provider's credentials can not be resolved.
	ErrAuth = errors.New("provider authentication failed")
)

// UnknownProviderError records an attempt to create an unregistered provider.
type UnknownProviderError struct {
	Name string
}

func (e UnknownProviderError) Error() string {
	return fmt.Sprintf("provider not registered: %q", e.Name)
}

func (e UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}

// Env carries process state that providers may share between opens.
type Env struct {
	// Memory backs the memory provider. When nil each open gets a fresh,
	// standalone store.
	Memory *memory.Registry
	// Registerer receives backend metrics when they are enabled. Nil means
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Factory builds an unopened backend from provider options.
type Factory func(ctx context.Context, cfg config.ProviderConfig, env Env) (store.Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider available by name. It panics if factory is nil
// or name is already registered.
func Register(name string, factory Factory) {
	if factory == nil {
		panic("provider: nil factory for " + name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("provider: %s already registered", name))
	}
	factories[name] = factory
}

// Names returns the registered provider names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the backend cfg selects. When cfg.Metrics.Enabled the
// backend is wrapped with instrument.
func Create(ctx context.Context, cfg *config.Config, env Env) (store.Backend, error) {
	mu.RLock()
	factory, ok := factories[cfg.Provider.Name]
	mu.RUnlock()
	if !ok {
		return nil, UnknownProviderError{Name: cfg.Provider.Name}
	}

	b, err := factory(ctx, cfg.Provider, env)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Provider.Name, err)
	}
	if !cfg.Metrics.Enabled {
		return b, nil
	}

	reg := env.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m, err := instrument.NewMetrics(reg, cfg.Metrics.Namespace)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	return instrument.Wrap(b, m, cfg.Provider.Name), nil
}
