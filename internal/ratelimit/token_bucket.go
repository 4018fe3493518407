// Package ratelimit implements an in-memory refilling token bucket keyed by
// an arbitrary string (usually the client IP).
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows max operations per key, refilling one token every
// refillInterval up to max.
type TokenBucket struct {
	mu             sync.Mutex
	storage        map[string]bucket
	max            int
	refillInterval time.Duration
	now            func() time.Time
}

type bucket struct {
	count      int
	refilledAt time.Time
}

func NewTokenBucket(max int, refillInterval time.Duration) *TokenBucket {
	return &TokenBucket{
		storage:        make(map[string]bucket),
		max:            max,
		refillInterval: refillInterval,
		now:            time.Now,
	}
}

// refilled returns the bucket state at now. Partial intervals carry over.
func (tb *TokenBucket) refilled(b bucket, now time.Time) bucket {
	steps := int(now.Sub(b.refilledAt) / tb.refillInterval)
	if steps <= 0 {
		return b
	}
	b.count += steps
	b.refilledAt = b.refilledAt.Add(time.Duration(steps) * tb.refillInterval)
	if b.count >= tb.max {
		b.count = tb.max
		b.refilledAt = now
	}
	return b
}

// Consume takes one token for key and reports whether one was available.
func (tb *TokenBucket) Consume(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.storage[key]
	if !ok {
		tb.storage[key] = bucket{count: tb.max - 1, refilledAt: now}
		return true
	}

	b = tb.refilled(b, now)
	if b.count < 1 {
		tb.storage[key] = b
		return false
	}
	b.count--
	tb.storage[key] = b
	return true
}

// RetryAfter is how long key must wait for its next token; zero if one is
// available now.
func (tb *TokenBucket) RetryAfter(key string) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b, ok := tb.storage[key]
	if !ok {
		return 0
	}
	now := tb.now()
	b = tb.refilled(b, now)
	if b.count > 0 {
		return 0
	}
	return b.refilledAt.Add(tb.refillInterval).Sub(now)
}

// Reset forgets key.
func (tb *TokenBucket) Reset(key string) {
	tb.mu.Lock()
	delete(tb.storage, key)
	tb.mu.Unlock()
}

// Prune drops buckets that have refilled completely; they are
// indistinguishable from absent ones.
func (tb *TokenBucket) Prune() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.storage {
		if tb.refilled(b, now).count >= tb.max {
			delete(tb.storage, key)
		}
	}
}
