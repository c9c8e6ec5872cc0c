package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/api"
	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/config"
	"github.com/patrickwarner/leadrelay/internal/db"
	"github.com/patrickwarner/leadrelay/internal/geoip"
	"github.com/patrickwarner/leadrelay/internal/middleware"
	"github.com/patrickwarner/leadrelay/internal/observability"
	"github.com/patrickwarner/leadrelay/internal/ratelimit"
	"github.com/patrickwarner/leadrelay/internal/relay"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, observability.TracingOptions{
			ServiceName: cfg.ServiceName,
			Version:     version,
			Environment: cfg.Environment,
			Endpoint:    cfg.TempoEndpoint,
			SampleRate:  cfg.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	// Attribution parameters live in Redis when configured, else in memory.
	var store attribution.Store
	var pinger api.Pinger
	var memStore *attribution.MemoryStore
	if cfg.RedisAddr != "" {
		rs, err := db.InitRedis(cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rs.Close()
		store, pinger = rs, rs
	} else {
		logger.Warn("REDIS_ADDR not set, keeping attribution in memory")
		memStore = attribution.NewMemoryStore()
		store = memStore
	}
	persistence := attribution.NewPersistence(store, logger.Named("attribution"), metricsRegistry)
	persistence.TTL = cfg.AttributionTTL

	var geoSvc *geoip.GeoIP
	if cfg.GeoIPDB != "" {
		g, err := geoip.Init(cfg.GeoIPDB)
		if err != nil {
			logger.Warn("geoip disabled", zap.String("path", cfg.GeoIPDB), zap.Error(err))
		} else {
			geoSvc = g
			defer func() { _ = geoSvc.Close() }()
		}
	}

	catalog := relay.DefaultCatalog()
	if cfg.LabelsFile != "" {
		c, err := relay.LoadCatalog(cfg.LabelsFile)
		if err != nil {
			return fmt.Errorf("load labels: %w", err)
		}
		catalog = c
	}

	tracker, closeSinks := buildAnalytics(ctx, logger, cfg, metricsRegistry)
	defer closeSinks()

	notifier := relay.NewClient(cfg.WebhookURL, cfg.WebhookSecret, cfg.RelayTimeout, logger.Named("relay"), metricsRegistry)
	if !notifier.Enabled() {
		logger.Warn("no webhook configured, leads will be logged only")
	}

	limiter := ratelimit.NewLimiter("relay", ratelimit.Config{
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitRefillRate,
		Interval:   cfg.RateLimitInterval,
		Enabled:    cfg.RateLimitEnabled,
	}, metricsRegistry)

	formatter := relay.NewFormatter(catalog, geoSvc, cfg.Timezone, cfg.SiteName)
	srvDeps := api.NewServer(logger, cfg, formatter, notifier, persistence, tracker, limiter, metricsRegistry)
	if pinger != nil {
		srvDeps.Store = pinger
	}

	r := mux.NewRouter()
	r.Use(
		middleware.WithTraceLogger(logger),
		middleware.WithVisitor(middleware.VisitorOptions{CookieName: cfg.VisitorCookie, Secure: cfg.CookieSecure}),
	)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/contact", srvDeps.ContactHandler).Methods("POST")
	apiRouter.HandleFunc("/contact", srvDeps.ContactPreflightHandler).Methods("OPTIONS")
	apiRouter.HandleFunc("/attribution", srvDeps.AttributionHandler).Methods("GET")
	apiRouter.Handle("/events", middleware.CORS("POST, OPTIONS")(http.HandlerFunc(srvDeps.EventsHandler))).Methods("POST", "OPTIONS")

	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	pages := middleware.WithPageViews(persistence, logger, observability.GetSamplingRate(), observability.ShouldSample)
	r.PathPrefix("/").Handler(pages(http.FileServer(http.Dir(cfg.StaticDir)))).Methods("GET", "HEAD")

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Lead relay running",
		zap.String("addr", addr),
		zap.Bool("webhook_signed", notifier.Signed()),
		zap.String("static_dir", cfg.StaticDir))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		for {
			select {
			case now := <-ticker.C:
				if n := limiter.Prune(time.Hour); n > 0 {
					logger.Debug("pruned rate limit buckets", zap.Int("removed", n))
				}
				if memStore != nil {
					if n := memStore.Prune(now); n > 0 {
						logger.Debug("pruned expired attribution keys", zap.Int("removed", n))
					}
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	tracker.Wait()

	return nil
}

// buildAnalytics assembles the configured sinks behind an async tracker.
// Sinks that fail to initialise are logged and skipped.
func buildAnalytics(ctx context.Context, logger *zap.Logger, cfg config.Config, metrics observability.MetricsRegistry) (*analytics.AsyncTracker, func()) {
	sinks := analytics.MultiTracker{analytics.LogTracker{Logger: logger.Named("analytics")}}
	var closers []func() error

	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN, analytics.PoolOptions{
			MaxOpenConns:    cfg.CHMaxOpenConns,
			MaxIdleConns:    cfg.CHMaxIdleConns,
			ConnMaxLifetime: cfg.CHConnMaxLifetime,
		}, logger)
		if err != nil {
			logger.Warn("clickhouse analytics disabled", zap.Error(err))
		} else {
			sinks = append(sinks, ch)
			closers = append(closers, ch.Close)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		k, err := analytics.NewKafkaTracker(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Warn("kafka analytics disabled", zap.Error(err))
		} else {
			sinks = append(sinks, k)
			closers = append(closers, k.Close)
			logger.Info("publishing analytics to kafka",
				zap.Strings("brokers", cfg.KafkaBrokers),
				zap.String("topic", cfg.KafkaTopic))
		}
	}

	tracker := analytics.NewAsyncTracker(sinks, cfg.AnalyticsTimeout, logger, metrics)
	return tracker, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close analytics sink", zap.Error(err))
			}
		}
	}
}
