package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/observability"
)

// NoopTracker discards events.
type NoopTracker struct{}

func (NoopTracker) Track(context.Context, Event) error { return nil }

// LogTracker writes events to a zap logger.
type LogTracker struct {
	Logger *zap.Logger
}

func (t LogTracker) Track(_ context.Context, e Event) error {
	if t.Logger == nil {
		return ErrUnavailable
	}
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("action", e.Action),
		zap.String("category", e.Category),
		zap.String("label", e.Label),
		zap.String("visitor", e.VisitorID),
	}
	if e.Value != nil {
		fields = append(fields, zap.Float64("value", *e.Value))
	}
	t.Logger.Info("analytics event", fields...)
	return nil
}

// MultiTracker fans an event out to every sink. All sinks are tried; their
// errors are joined.
type MultiTracker []Tracker

func (m MultiTracker) Track(ctx context.Context, e Event) error {
	var errs []error
	for _, t := range m {
		if err := t.Track(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncTracker hands events to Next on a goroutine bounded by Timeout, so
// callers never wait on a sink. Panics in sinks are recovered and logged.
type AsyncTracker struct {
	Next    Tracker
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics observability.MetricsRegistry
	Now     func() time.Time

	wg sync.WaitGroup
}

// NewAsyncTracker wraps next.
func NewAsyncTracker(next Tracker, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *AsyncTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &AsyncTracker{Next: next, Timeout: timeout, Logger: logger, Metrics: metrics, Now: time.Now}
}

// Track validates and stamps e, then returns immediately.
func (a *AsyncTracker) Track(ctx context.Context, e Event) error {
	if !e.Valid() {
		return fmt.Errorf("invalid event: action and category are required")
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	e = e.Stamp(now())
	a.Metrics.IncrementAnalyticsEvent(e.Action)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.Logger.Error("analytics sink panicked", zap.Any("panic", r), zap.String("action", e.Action))
				a.Metrics.IncrementAnalyticsErrors("panic")
			}
		}()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
		defer cancel()
		if err := a.Next.Track(tctx, e); err != nil {
			a.Logger.Warn("analytics event dropped", zap.String("action", e.Action), zap.Error(err))
			a.Metrics.IncrementAnalyticsErrors("sink")
		}
	}()
	return nil
}

// Wait blocks until in-flight events have been handed off.
func (a *AsyncTracker) Wait() {
	a.wg.Wait()
}
