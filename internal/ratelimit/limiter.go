package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veilscope/veilscope/internal/config"
)

// Limiter is the injected rate-limiting collaborator. Keys are chosen by
// the caller (workspace id for authenticated traffic, client IP
// otherwise).
type Limiter interface {
	Allow(key string) bool
}

// KeyedLimiter applies a token bucket per key. State is scoped to the
// constructed instance; there is no package-level map.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	maxIdle time.Duration
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewKeyedLimiter(cfg config.RateLimitConfig) *KeyedLimiter {
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
		maxIdle: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()

	return b.limiter.Allow()
}

// Sweep drops buckets idle longer than the retention window. The server
// runs this on a ticker.
func (l *KeyedLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxIdle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// TrackedKeys returns the number of live buckets.
func (l *KeyedLimiter) TrackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
