// Package health serves liveness and readiness probes.
//
// Every check runs on its own ticker. A check turns unhealthy only after
// several consecutive failures and healthy again after consecutive
// successes, so a single slow ping does not flip a probe.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Default thresholds for a registered check.
const (
	DefaultFailureThreshold = 3
	DefaultSuccessThreshold = 1
)

// CheckFunc reports nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option tunes a single check.
type Option func(*probe)

// WithFailureThreshold sets how many consecutive failures mark the check
// unhealthy.
func WithFailureThreshold(n int) Option {
	return func(p *probe) {
		if n > 0 {
			p.failAfter = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes mark the check
// healthy again.
func WithSuccessThreshold(n int) Option {
	return func(p *probe) {
		if n > 0 {
			p.recoverAfter = n
		}
	}
}

// probe is a registered check and its state. fails and oks are owned by the
// goroutine calling run; healthy and lastErr are read concurrently.
type probe struct {
	name         string
	timeout      time.Duration
	fn           CheckFunc
	failAfter    int
	recoverAfter int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc, opts []Option) *probe {
	p := &probe{
		name:         name,
		timeout:      timeout,
		fn:           fn,
		failAfter:    DefaultFailureThreshold,
		recoverAfter: DefaultSuccessThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.recoverAfter {
		p.healthy.Store(true)
	}
}

// failure returns the reason p is unhealthy, or "" when it is healthy.
func (p *probe) failure() string {
	if p.healthy.Load() {
		return ""
	}
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.run(ctx)
		}
	}
}

// Health tracks liveness and readiness of the process.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process
// should be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check that decides whether the process
// should receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, fn, opts))
}

// Start runs every registered check every interval until Stop or ctx is
// done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// Stop halts the check loops. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate, e.g. off during shutdown drain.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.snapshot(&h.readiness))) == 0
}

func (h *Health) snapshot(list *[]*probe) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(*list)
}

// Register mounts GET /livez and GET /readyz on mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /livez", h.LiveEndpoint)
	mux.HandleFunc("GET /readyz", h.ReadyEndpoint)
}

// LiveEndpoint answers 200 when all liveness checks pass, 503 otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(&h.liveness)))
}

// ReadyEndpoint answers 200 when the service is marked ready and all
// readiness checks pass, 503 otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(&h.readiness))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if reason := p.failure(); reason != "" {
			out[p.name] = reason
		}
	}
	return out
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
