package ratelimit

import (
	"context"
	"sync"
	"time"
)

// KeyedLimiter keeps one token bucket per key, e.g. per user or client IP.
// Buckets idle for longer than IdleTTL are dropped by Sweep.
type KeyedLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*entry
	maxTokens  float64
	refillRate float64
	idleTTL    time.Duration
	now        func() time.Time
}

type entry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter with the given per-key burst and rate
func NewKeyedLimiter(maxTokens, refillRate float64, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		limiters:   make(map[string]*entry),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleTTL:    idleTTL,
		now:        time.Now,
	}
}

// Allow takes one token from key's bucket. When refused, it also returns how
// long the caller should wait.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	bucket := l.bucket(key)
	if bucket.Allow() {
		return true, 0
	}
	return false, bucket.RetryAfter()
}

func (l *KeyedLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.limiters[key]
	if !exists {
		e = &entry{bucket: newTokenBucket(l.maxTokens, l.refillRate, l.now)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.bucket
}

// Sweep drops idle buckets and returns how many were removed
func (l *KeyedLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Run sweeps periodically until ctx is cancelled
func (l *KeyedLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}
