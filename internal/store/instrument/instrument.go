// Package instrument wraps a store.Backend with Prometheus metrics: a
// latency histogram and a result counter per operation.
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cloudshelf/internal/store"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the collectors shared by every wrapped backend.
type Metrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them with
// reg. Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "operation_duration_seconds",
		Help:      "Time spent in backend operations.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"provider", "operation"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "operations_total",
		Help:      "Backend operations by result.",
	}, []string{"provider", "operation", "result"})

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if total, err = register(reg, total); err != nil {
		return nil, err
	}
	return &Metrics{duration: duration, total: total}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Backend records every call on the wrapped store.Backend.
type Backend struct {
	next     store.Backend
	metrics  *Metrics
	provider string
}

// Wrap instruments b, labelling its series with provider.
func Wrap(b store.Backend, m *Metrics, provider string) *Backend {
	return &Backend{next: b, metrics: m, provider: provider}
}

// Unwrap returns the instrumented backend.
func (b *Backend) Unwrap() store.Backend { return b.next }

func (b *Backend) observe(op string, start time.Time, err error) {
	b.metrics.duration.WithLabelValues(b.provider, op).Observe(time.Since(start).Seconds())
	result := ResultOK
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}
	b.metrics.total.WithLabelValues(b.provider, op, result).Inc()
}

func (b *Backend) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	v, err := b.next.Get(ctx, key)
	b.observe("get", start, err)
	return v, err
}

func (b *Backend) Set(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := b.next.Set(ctx, key, value)
	b.observe("set", start, err)
	return err
}

func (b *Backend) Delete(ctx context.Context, key []byte) error {
	start := time.Now()
	err := b.next.Delete(ctx, key)
	b.observe("delete", start, err)
	return err
}

// ForEachKey times the whole iteration, including fn.
func (b *Backend) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	start := time.Now()
	err := b.next.ForEachKey(ctx, fn)
	b.observe("iter", start, err)
	return err
}

func (b *Backend) Len(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := b.next.Len(ctx)
	b.observe("len", start, err)
	return n, err
}

func (b *Backend) Exists(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := b.next.Exists(ctx)
	b.observe("exists", start, err)
	return ok, err
}

func (b *Backend) Create(ctx context.Context) error {
	start := time.Now()
	err := b.next.Create(ctx)
	b.observe("create", start, err)
	return err
}

func (b *Backend) Sync(ctx context.Context) error {
	start := time.Now()
	err := b.next.Sync(ctx)
	b.observe("sync", start, err)
	return err
}

func (b *Backend) Close() error {
	return b.next.Close()
}
