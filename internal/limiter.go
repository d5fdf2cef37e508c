package internal

import (
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type LimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter keeps a true sliding window of request timestamps per client
// key. All state lives behind one mutex; keys are created lazily and evicted
// by Sweep once their window has fully elapsed.
type RateLimiter struct {
	mu      sync.Mutex
	clock   Clock
	buckets map[string]*bucket
}

type bucket struct {
	stamps  []time.Time
	resetAt time.Time
}

func NewRateLimiter(clock Clock) *RateLimiter {
	return &RateLimiter{clock: clock, buckets: make(map[string]*bucket)}
}

// Admit decides whether a request for key may proceed under cfg.
// Fails closed: a limiter with no usable state denies everything.
func (l *RateLimiter) Admit(key string, cfg LimitConfig) Decision {
	if l == nil {
		return Decision{Allowed: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.buckets == nil {
		return Decision{Allowed: false, ResetAt: now.Add(cfg.Window)}
	}

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-cfg.Window)
	kept := b.stamps[:0]
	for _, ts := range b.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.stamps = kept

	if len(b.stamps) >= cfg.MaxRequests {
		return Decision{
			Allowed: false,
			ResetAt: b.stamps[0].Add(cfg.Window),
		}
	}

	b.stamps = append(b.stamps, now)
	b.resetAt = now.Add(cfg.Window)

	return Decision{
		Allowed:   true,
		Remaining: cfg.MaxRequests - len(b.stamps),
		ResetAt:   b.stamps[0].Add(cfg.Window),
	}
}

// Sweep drops every key whose bookkeeping window has fully elapsed.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// RunSweeper periodically evicts expired keys until stop is closed.
func (l *RateLimiter) RunSweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}

func (l *RateLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
