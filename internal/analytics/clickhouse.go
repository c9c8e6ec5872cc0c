package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// PoolOptions sizes the ClickHouse connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ClickHouseTracker writes events to the site_events table.
type ClickHouseTracker struct {
	DB     *sql.DB
	Logger *zap.Logger
}

const createEventsTable = `CREATE TABLE IF NOT EXISTS site_events (
       event_time  DateTime64(3, 'UTC'),
       event_id    String,
       action      LowCardinality(String),
       category    LowCardinality(String),
       label       String,
       value       Nullable(Float64),
       currency    LowCardinality(String),
       visitor_id  String,
       page        String
   ) ENGINE = MergeTree()
   ORDER BY (event_time, action)`

const insertEvent = `INSERT INTO site_events
       (event_time, event_id, action, category, label, value, currency, visitor_id, page)
       VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

var (
	driverMu   sync.Mutex
	otelDriver string
)

// instrumentedDriver registers the otelsql wrapper around the clickhouse
// driver once per process.
func instrumentedDriver() (string, error) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if otelDriver != "" {
		return otelDriver, nil
	}
	name, err := otelsql.Register("clickhouse",
		otelsql.WithAttributes(attribute.String("db.system", "clickhouse")),
	)
	if err != nil {
		return "", fmt.Errorf("register otelsql driver: %w", err)
	}
	otelDriver = name
	return name, nil
}

// InitClickHouse connects to ClickHouse through an instrumented driver and
// ensures the events table exists.
func InitClickHouse(ctx context.Context, dsn string, pool PoolOptions, logger *zap.Logger) (*ClickHouseTracker, error) {
	if dsn == "" {
		return nil, ErrUnavailable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := instrumentedDriver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create site_events: %w", err)
	}
	logger.Info("ClickHouse analytics ready")
	return &ClickHouseTracker{DB: db, Logger: logger}, nil
}

// Track inserts one row.
func (c *ClickHouseTracker) Track(ctx context.Context, e Event) error {
	if c == nil || c.DB == nil {
		return ErrUnavailable
	}
	var v sql.NullFloat64
	if e.Value != nil {
		v = sql.NullFloat64{Float64: *e.Value, Valid: true}
	}
	_, err := c.DB.ExecContext(ctx, insertEvent,
		e.Timestamp.UTC(), e.ID, e.Action, e.Category, e.Label, v, e.Currency, e.VisitorID, e.Page)
	if err != nil {
		return fmt.Errorf("insert site event: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *ClickHouseTracker) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
