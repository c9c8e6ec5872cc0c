package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/observability"
)

// DefaultTTL is how long campaign parameters survive after the last page
// view that carried them.
const DefaultTTL = 24 * time.Hour

const (
	paramsKey = "user_utm_params"
	expiryKey = "user_utm_expiry"
)

// ErrNoVisitor is returned by Save when no visitor id is known.
var ErrNoVisitor = errors.New("missing visitor id")

// Store is a string key-value backend. Get reports found=false for a
// missing key. ttl is a garbage-collection hint; expiry is enforced by
// Persistence itself.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Clear(ctx context.Context, keys ...string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Persistence keeps each visitor's campaign parameters for TTL after the
// last page view that carried any. Reads and writes are not coordinated:
// concurrent page views of one visitor resolve last-write-wins.
type Persistence struct {
	Store   Store
	Clock   Clock
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry
}

// NewPersistence returns a Persistence with defaults filled in.
func NewPersistence(store Store, logger *zap.Logger, metrics observability.MetricsRegistry) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Persistence{Store: store, Clock: SystemClock{}, TTL: DefaultTTL, Logger: logger, Metrics: metrics}
}

func storageKey(visitor, name string) string {
	return fmt.Sprintf("attribution:%s:%s", visitor, name)
}

func (p *Persistence) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

func (p *Persistence) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultTTL
	}
	return p.TTL
}

func (p *Persistence) storeFailed(op, visitor string, err error) {
	if p.Logger != nil {
		p.Logger.Warn("attribution store unavailable",
			zap.String("op", op),
			zap.String("visitor", visitor),
			zap.Error(err))
	}
	if p.Metrics != nil {
		p.Metrics.IncrementStoreErrors(op)
	}
}

// Save writes params with an expiry of now+TTL. An empty set is ignored so
// a plain page view never erases a live campaign.
func (p *Persistence) Save(ctx context.Context, visitor string, params Params) error {
	if visitor == "" {
		return ErrNoVisitor
	}
	if params.IsEmpty() {
		return nil
	}
	clean := Merge(nil, params)
	raw, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	expiry := p.now().Add(p.ttl()).UnixMilli()

	if err := p.Store.Set(ctx, storageKey(visitor, paramsKey), string(raw), p.ttl()); err != nil {
		p.storeFailed("save", visitor, err)
		return fmt.Errorf("save params: %w", err)
	}
	if err := p.Store.Set(ctx, storageKey(visitor, expiryKey), strconv.FormatInt(expiry, 10), p.ttl()); err != nil {
		p.storeFailed("save", visitor, err)
		return fmt.Errorf("save expiry: %w", err)
	}
	return nil
}

// expiry returns the stored expiry in unix millis, or ok=false when none is
// stored or it cannot be read.
func (p *Persistence) expiry(ctx context.Context, visitor string) (int64, bool) {
	v, found, err := p.Store.Get(ctx, storageKey(visitor, expiryKey))
	if err != nil {
		p.storeFailed("load", visitor, err)
		return 0, false
	}
	if !found {
		return 0, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// IsExpired reports whether the visitor has no live parameter set.
func (p *Persistence) IsExpired(ctx context.Context, visitor string) bool {
	if visitor == "" {
		return true
	}
	ms, ok := p.expiry(ctx, visitor)
	return !ok || p.now().UnixMilli() > ms
}

// Load returns the visitor's saved parameters. Expired entries are deleted
// and an empty set returned. Store failures degrade to an empty set.
func (p *Persistence) Load(ctx context.Context, visitor string) Params {
	if visitor == "" {
		return Params{}
	}
	if p.IsExpired(ctx, visitor) {
		p.Clear(ctx, visitor)
		return Params{}
	}

	raw, found, err := p.Store.Get(ctx, storageKey(visitor, paramsKey))
	if err != nil {
		p.storeFailed("load", visitor, err)
		return Params{}
	}
	if !found {
		return Params{}
	}
	var params Params
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		p.Logger.Warn("discarding unreadable attribution params",
			zap.String("visitor", visitor), zap.Error(err))
		return Params{}
	}
	return Merge(nil, params)
}

// Clear deletes the visitor's saved parameters.
func (p *Persistence) Clear(ctx context.Context, visitor string) {
	if visitor == "" {
		return
	}
	if err := p.Store.Clear(ctx, storageKey(visitor, paramsKey), storageKey(visitor, expiryKey)); err != nil {
		p.storeFailed("clear", visitor, err)
	}
}

// MergeWithCurrent returns the saved parameters overlaid with those on
// currentURL.
func (p *Persistence) MergeWithCurrent(ctx context.Context, visitor, currentURL string) Params {
	return Merge(p.Load(ctx, visitor), ExtractParams(currentURL))
}

// Track runs once per page view: parameters on currentURL are saved, then
// the saved set is loaded so an expired one is cleaned up. Repeating it for
// the same URL is harmless.
func (p *Persistence) Track(ctx context.Context, visitor, currentURL string) {
	if visitor == "" {
		return
	}
	if current := ExtractParams(currentURL); !current.IsEmpty() {
		if err := p.Save(ctx, visitor, current); err != nil {
			p.Logger.Debug("attribution save skipped", zap.String("visitor", visitor), zap.Error(err))
		}
	}
	p.Load(ctx, visitor)
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

// MemoryStore is an in-process Store used when no Redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	Clock Clock
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), Clock: SystemClock{}}
}

func (m *MemoryStore) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock.Now()
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.deadline.IsZero() && m.now().After(e.deadline) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.deadline = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Prune drops every key whose TTL has passed at now and returns how many
// were removed. Get only evicts the key it reads, so visitors who never come
// back are cleared here.
func (m *MemoryStore) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.items {
		if !e.deadline.IsZero() && now.After(e.deadline) {
			delete(m.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
