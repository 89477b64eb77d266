package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/domain/product"
)

// FailureMessage is shown to the shopper when the catalog cannot be fetched.
const FailureMessage = "Failed to load products. Please check your connection."

// ErrStale is returned by Refresh when a newer refresh started before this
// one completed; its result was discarded.
var ErrStale = errors.New("catalog refresh superseded")

// ErrNotReady is returned by Lookup while no catalog is loaded.
var ErrNotReady = errors.New("catalog not loaded")

// ErrUnknownProduct is returned by Lookup for ids absent from the catalog.
var ErrUnknownProduct = errors.New("product not found")

// Status is the catalog lifecycle state.
type Status int

// Catalog states.
const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a read-only view of the catalog. Products is empty unless
// Status is StatusReady.
type State struct {
	Status   Status
	Products []product.Product
	// Err is the cause of the last failure, for logs.
	Err error
	// Message is the user-facing failure text.
	Message string
}

// Listener is called after every successful refresh that was applied.
type Listener func(ctx context.Context, products []product.Product)

// Loader fetches the catalog from a Source and keeps the latest result.
//
// Refreshes are sequenced: every call takes the next sequence number and its
// result is applied only if no newer refresh has started since, so the most
// recently requested fetch always wins.
type Loader struct {
	source product.Source

	mu        sync.RWMutex
	state     State
	seq       uint64
	listeners []Listener

	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMeterProvider records fetch metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) LoaderOption {
	return func(l *Loader) {
		meter := mp.Meter("github.com/xenking/kirana/internal/catalog")
		if h, err := meter.Float64Histogram("kirana.catalog.fetch.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Catalog fetch duration"),
		); err == nil {
			l.duration = h
		}
		if c, err := meter.Int64Counter("kirana.catalog.fetch.failures",
			metric.WithDescription("Failed catalog fetches"),
		); err == nil {
			l.failures = c
		}
	}
}

// WithListener registers fn to run after each applied refresh.
func WithListener(fn Listener) LoaderOption {
	return func(l *Loader) {
		l.listeners = append(l.listeners, fn)
	}
}

// NewLoader returns a Loader in the loading state. Call Refresh to fetch.
func NewLoader(source product.Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		state:  State{Status: StatusLoading},
	}
	WithMeterProvider(noop.NewMeterProvider())(l)
	for _, o := range opts {
		o(l)
	}
	return l
}

// State returns the current catalog state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Lookup returns the product with id from the loaded catalog.
func (l *Loader) Lookup(id string) (product.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state.Status != StatusReady {
		return product.Product{}, ErrNotReady
	}
	for _, p := range l.state.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return product.Product{}, ErrUnknownProduct
}

// Refresh fetches the catalog. The state switches to loading immediately;
// on success the product list is replaced wholesale, on failure the catalog
// is empty and the state carries the failure message until a retry
// succeeds. A result overtaken by a newer refresh is dropped with ErrStale.
func (l *Loader) Refresh(ctx context.Context) error {
	lg := zctx.From(ctx)

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.state = State{Status: StatusLoading}
	l.mu.Unlock()

	start := time.Now()
	products, err := l.source.ListAvailable(ctx)
	l.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.Bool("ok", err == nil)),
	)

	l.mu.Lock()
	if seq != l.seq {
		l.mu.Unlock()
		lg.Info("Dropping superseded catalog result", zap.Uint64("seq", seq))
		return ErrStale
	}
	if err != nil {
		l.state = State{Status: StatusFailed, Err: err, Message: FailureMessage}
		l.mu.Unlock()
		l.failures.Add(ctx, 1)
		lg.Error("Fetch catalog", zap.Uint64("seq", seq), zap.Error(err))
		return errors.Wrap(err, "fetch catalog")
	}
	l.state = State{Status: StatusReady, Products: products}
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	lg.Info("Catalog loaded",
		zap.Uint64("seq", seq),
		zap.Int("products", len(products)),
		zap.Duration("took", time.Since(start)),
	)
	for _, fn := range listeners {
		fn(ctx, products)
	}
	return nil
}
