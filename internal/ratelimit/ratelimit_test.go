package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/leadrelay/internal/observability"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func TestTokenBucketAllow(t *testing.T) {
	clock := newClock()
	bucket := newTokenBucket(5, 1, time.Second, clock.Now)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d", i+1)
	}
	assert.False(t, bucket.Allow())

	hits, total := bucket.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(6), total)
}

func TestTokenBucketRefill(t *testing.T) {
	clock := newClock()
	bucket := newTokenBucket(2, 1, time.Minute, clock.Now)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	clock.Advance(40 * time.Second)
	assert.False(t, bucket.Allow())

	// the 40s already elapsed count toward the next token
	clock.Advance(20 * time.Second)
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}

func TestTokenBucketRefillCapped(t *testing.T) {
	clock := newClock()
	bucket := newTokenBucket(2, 1, time.Second, clock.Now)
	bucket.Allow()
	bucket.Allow()

	clock.Advance(time.Hour)
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())
}

func TestLimiterPerKey(t *testing.T) {
	metrics := &observability.MockMetricsRegistry{}
	l := NewLimiter("relay", Config{Capacity: 1, RefillRate: 1, Interval: time.Minute, Enabled: true}, metrics)
	clock := newClock()
	l.now = clock.Now

	assert.True(t, l.Allow("203.0.113.9"))
	assert.False(t, l.Allow("203.0.113.9"))
	assert.True(t, l.Allow("198.51.100.4"))

	assert.Equal(t, 3, metrics.Count("ratelimit_requests", "relay"))
	assert.Equal(t, 1, metrics.Count("ratelimit_hits", "relay"))

	stats := l.GetStats()
	assert.Equal(t, int64(1), stats["203.0.113.9"].Hits)
	assert.Equal(t, 0.5, stats["203.0.113.9"].HitRate)
	assert.Contains(t, stats["203.0.113.9"].String(), "1/2 blocked")
}

func TestLimiterDisabled(t *testing.T) {
	metrics := &observability.MockMetricsRegistry{}
	l := NewLimiter("relay", Config{Capacity: 0, Enabled: false}, metrics)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("203.0.113.9"))
	}
	assert.Equal(t, 0, metrics.Count("ratelimit_requests", "relay"))

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("x"))
}

func TestLimiterPrune(t *testing.T) {
	l := NewLimiter("relay", Config{Capacity: 1, RefillRate: 1, Interval: time.Minute, Enabled: true}, nil)
	clock := newClock()
	l.now = clock.Now

	l.Allow("a")
	clock.Advance(30 * time.Minute)
	l.Allow("b")

	assert.Equal(t, 1, l.Prune(10*time.Minute))
	assert.Equal(t, 1, l.Len())
	_, ok := l.GetStats()["b"]
	assert.True(t, ok)
}

func TestLimiterConcurrent(t *testing.T) {
	l := NewLimiter("relay", Config{Capacity: 50, RefillRate: 1, Interval: time.Hour, Enabled: true}, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
