package admingate

import (
	"sync"
	"time"
)

// Limiter caps PIN verification attempts per key within a fixed window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count    int
	windowAt time.Time
}

// NewLimiter allows limit attempts per key in each window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowAt) >= l.window {
		l.buckets[key] = &bucket{count: 1, windowAt: now}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// Reset forgets the attempts recorded for key, e.g. after a correct PIN.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * l.window)
	for k, b := range l.buckets {
		if b.windowAt.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
