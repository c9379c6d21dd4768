// Package ratelimit implements the per-client fixed-window throttle that
// guards the intake endpoints.
//
// Each Limiter maps a client key (the caller's network address) to a
// {count, expiry} window.  The first request for a key, or the first after
// its window expired, opens a new window with count 1.  Later requests
// increment the count and are denied once it exceeds Max.
//
// State lives in process memory only.  Several replicas each enforce their
// own budget, so throttling is best effort rather than a hard guarantee.
// Key state is bounded by an LRU and swept of expired windows by Run.
package ratelimit

import (
	"sync"
	"time"

	"github.com/yanizio/adept-intake/internal/cache"
	"github.com/yanizio/adept-intake/internal/metrics"
)

// DefaultMaxKeys bounds tracked keys when no explicit cap is given.
const DefaultMaxKeys = 10_000

type window struct {
	count  int
	expiry time.Time
}

// Limiter is safe for concurrent use.
type Limiter struct {
	name   string
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows *cache.LRU[string, *window]
}

// Option tweaks a Limiter at construction.
type Option func(*limiterOpts)

type limiterOpts struct {
	now     func() time.Time
	maxKeys int
}

// WithClock injects a time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *limiterOpts) { o.now = now }
}

// WithMaxKeys caps the number of tracked client keys.  0 means unbounded.
func WithMaxKeys(n int) Option {
	return func(o *limiterOpts) { o.maxKeys = n }
}

// New returns a Limiter admitting max requests per key per window.  name
// labels its metrics and log lines.
func New(name string, windowLen time.Duration, max int, opts ...Option) *Limiter {
	o := limiterOpts{now: time.Now, maxKeys: DefaultMaxKeys}
	for _, fn := range opts {
		fn(&o)
	}

	l := &Limiter{
		name:   name,
		window: windowLen,
		max:    max,
		now:    o.now,
	}
	l.windows = cache.New[string, *window](o.maxKeys, func(string, *window) {
		metrics.RateLimitEvictTotal.WithLabelValues(name, "capacity").Inc()
	})
	return l
}

// Allow records one request for key and reports whether it is admitted.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows.Get(key)
	if !ok || now.After(w.expiry) {
		l.windows.Add(key, &window{count: 1, expiry: now.Add(l.window)})
		metrics.RateLimitKeys.WithLabelValues(l.name).Set(float64(l.windows.Len()))
		return true
	}

	w.count++
	if w.count > l.max {
		metrics.RateLimitedTotal.WithLabelValues(l.name).Inc()
		return false
	}
	return true
}

// Sweep drops every expired window and reports how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	n := l.windows.RemoveIf(func(_ string, w *window) bool { return now.After(w.expiry) })
	size := l.windows.Len()
	l.mu.Unlock()

	if n > 0 {
		metrics.RateLimitEvictTotal.WithLabelValues(l.name, "expired").Add(float64(n))
	}
	metrics.RateLimitKeys.WithLabelValues(l.name).Set(float64(size))
	return n
}

// Len reports how many client keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windows.Len()
}
