package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per Window.
	Max int
	// Window is the length of one counting window.
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts requests from limiting. Defaults to SafeMethods.
	Skip func(*http.Request) bool
}

// SafeMethods skips read-only requests so that only mutations are limited.
func SafeMethods(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Decision is the outcome of a single SlidingWindow.Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// window holds counts for the current fixed window and the one before it.
type window struct {
	start     time.Time
	count     float64
	prevCount float64
}

// SlidingWindow approximates a sliding log by weighting the previous
// window's count by how much of it still overlaps the sliding interval.
type SlidingWindow struct {
	max    int
	length time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

// NewSlidingWindow returns a limiter allowing limit hits per length.
func NewSlidingWindow(limit int, length time.Duration) *SlidingWindow {
	return &SlidingWindow{max: limit, length: length, windows: make(map[string]*window)}
}

// Allow records a hit for key at now if it fits the budget.
func (s *SlidingWindow) Allow(key string, now time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{start: now}
		s.windows[key] = w
	}
	if since := now.Sub(w.start); since >= s.length {
		w.prevCount = w.count
		if since >= 2*s.length {
			w.prevCount = 0
		}
		w.count = 0
		w.start = now.Truncate(s.length)
	}

	overlap := max(0, 1-now.Sub(w.start).Seconds()/s.length.Seconds())
	used := w.prevCount*overlap + w.count
	d := Decision{ResetAt: w.start.Add(s.length)}
	if used >= float64(s.max) {
		return d
	}
	w.count++
	d.Allowed = true
	d.Remaining = max(0, int(float64(s.max)-used-1))
	return d
}

// Sweep drops clients idle for two full windows.
func (s *SlidingWindow) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if now.Sub(w.start) >= 2*s.length {
			delete(s.windows, key)
		}
	}
}

// Len returns the number of tracked clients.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// RateLimit limits requests per client. Over-limit requests get 429 with a
// Retry-After header; limited responses carry X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, NewSlidingWindow(cfg.Max, cfg.Window))
}

// RateLimitWithCleanup is RateLimit plus a goroutine sweeping idle clients
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	sw := NewSlidingWindow(cfg.Max, cfg.Window)
	go func() {
		t := time.NewTicker(2 * cfg.Window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				sw.Sweep(now)
			}
		}
	}()
	return rateLimit(cfg, sw)
}

func rateLimit(cfg RateLimitConfig, sw *SlidingWindow) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Skip == nil {
		cfg.Skip = SafeMethods
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := sw.Allow(cfg.KeyFunc(r), time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				wait := max(0, time.Until(d.ResetAt))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP identifies a client by the first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
