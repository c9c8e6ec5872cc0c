// Package ratelimit provides keyed token buckets. A bucket allows bursts up
// to its capacity and refills a fixed number of tokens per interval.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a thread-safe token bucket. Buckets are created by a
// Limiter, one per key.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int           // tokens added per interval
	interval   time.Duration // refill period
	lastRefill time.Time
	lastSeen   time.Time
	now        func() time.Time
	mu         sync.Mutex
	hitCount   int64
	totalCount int64
}

// newTokenBucket creates a full bucket adding refillRate tokens every
// interval. A non-positive interval means one second.
func newTokenBucket(capacity, refillRate int, interval time.Duration, now func() time.Time) *TokenBucket {
	if interval <= 0 {
		interval = time.Second
	}
	t := now()
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		interval:   interval,
		lastRefill: t,
		lastSeen:   t,
		now:        now,
	}
}

// Allow consumes one token, reporting false when the bucket is empty.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++
	now := tb.now()
	tb.lastSeen = now

	periods := int(now.Sub(tb.lastRefill) / tb.interval)
	if add := periods * tb.refillRate; add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		// keep the partial period so slow refill rates still accrue
		tb.lastRefill = tb.lastRefill.Add(time.Duration(periods) * tb.interval)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	tb.hitCount++
	return false
}

// Stats returns how many requests were blocked out of how many were seen.
func (tb *TokenBucket) Stats() (hits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.hitCount, tb.totalCount
}

// idleSince reports whether the bucket has not been used since t.
func (tb *TokenBucket) idleSince(t time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastSeen.Before(t)
}
