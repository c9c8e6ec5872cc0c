package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickwarner/leadrelay/internal/observability"
)

// Config holds the limiter settings.
type Config struct {
	Capacity   int           // burst allowance per key
	RefillRate int           // tokens added per Interval
	Interval   time.Duration // refill period
	Enabled    bool
}

// Limiter keeps one bucket per key, created on first use. Keys are client
// IPs; metrics are labelled with the limiter's scope, never the key, to
// keep label cardinality bounded.
type Limiter struct {
	scope   string
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	metrics observability.MetricsRegistry
	now     func() time.Time
}

// NewLimiter creates a limiter reporting under scope.
func NewLimiter(scope string, config Config, metrics observability.MetricsRegistry) *Limiter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Limiter{
		scope:   scope,
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed. A disabled limiter
// always allows.
func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}

	l.metrics.IncrementRateLimitRequests(l.scope)

	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.config.Interval, l.now)
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		l.metrics.IncrementRateLimitHits(l.scope)
	}
	return allowed
}

// Prune drops buckets unused for longer than idle and returns how many were
// removed.
func (l *Limiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.idleSince(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// GetStats returns a snapshot of per-key statistics.
func (l *Limiter) GetStats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]Stats, len(l.buckets))
	for key, bucket := range l.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		stats[key] = Stats{Key: key, Hits: hits, Total: total, HitRate: hitRate}
	}
	return stats
}

// Stats describes the activity of one key.
type Stats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hitRate"`
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %d/%d blocked (%.2f%%)", s.Key, s.Hits, s.Total, s.HitRate*100)
}
