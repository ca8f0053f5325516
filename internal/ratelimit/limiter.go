// Package ratelimit provides an in-process, per-identifier request ceiling.
// It is deliberately not distributed: a horizontally scaled deployment
// accepts slightly loose limits in exchange for zero added latency.
package ratelimit

import (
	"sync"
	"time"
)

// Config sizes the limiter.
type Config struct {
	// Requests allowed per Window for each identifier.
	Requests int
	Window   time.Duration
	// SweepInterval controls how often idle buckets are collected.
	// Buckets idle for more than two windows are dropped.
	SweepInterval time.Duration
}

// Limiter is a token-bucket limiter keyed by identifier. Create one per
// process and Close it on shutdown; it holds no global state.
type Limiter struct {
	refillRate float64 // tokens per second
	maxTokens  float64
	idleAfter  time.Duration
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	sweepTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// New creates a limiter and starts its background sweep.
func New(cfg Config) *Limiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	l := &Limiter{
		refillRate:  float64(cfg.Requests) / cfg.Window.Seconds(),
		maxTokens:   float64(cfg.Requests),
		idleAfter:   2 * cfg.Window,
		now:         time.Now,
		buckets:     make(map[string]*bucket),
		sweepTicker: time.NewTicker(cfg.SweepInterval),
		done:        make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether one request for id is admitted right now.
func (l *Limiter) Allow(id string) bool {
	ok, _ := l.allow(id)
	return ok
}

// AllowWithRetry additionally reports how long the caller should wait
// before retrying after a rejection.
func (l *Limiter) AllowWithRetry(id string) (bool, time.Duration) {
	return l.allow(id)
}

func (l *Limiter) allow(id string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[id] = b
	} else {
		b.tokens += now.Sub(b.lastRefill).Seconds() * l.refillRate
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	// Time until one whole token refills.
	wait := time.Duration((1 - b.tokens) / l.refillRate * float64(time.Second))
	return false, wait
}

// Close stops the sweep goroutine. The limiter must not be used afterwards.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		l.sweepTicker.Stop()
		close(l.done)
	})
}

func (l *Limiter) sweepLoop() {
	for {
		select {
		case <-l.sweepTicker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops buckets that have been idle long enough to be full again,
// amortizing cleanup instead of paying for it per request.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.idleAfter {
			delete(l.buckets, id)
		}
	}
}
