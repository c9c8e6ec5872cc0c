package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// dingTalkRobotURL is the DingTalk custom-robot endpoint used when only an
// access token is configured.
const dingTalkRobotURL = "https://oapi.dingtalk.com/robot/send"

// Config holds application configuration derived from environment variables.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ServiceName     string
	Environment     string
	StaticDir       string

	// Site presentation
	SiteName     string
	SupportEmail string
	Timezone     string

	// Visitor identification
	VisitorCookie string
	CookieSecure  bool

	// Webhook relay. An empty WebhookURL disables relaying; an empty
	// WebhookSecret sends unsigned requests.
	WebhookURL    string
	WebhookSecret string
	RelayTimeout  time.Duration

	// Attribution persistence. An empty RedisAddr keeps parameters in memory.
	RedisAddr      string
	AttributionTTL time.Duration

	GeoIPDB    string
	LabelsFile string

	// Analytics sinks. Each is disabled when its address is empty.
	ClickHouseDSN     string
	CHMaxOpenConns    int
	CHMaxIdleConns    int
	CHConnMaxLifetime time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
	AnalyticsTimeout  time.Duration

	// Global relay budget. Off by default.
	RateLimitEnabled    bool
	RateLimitCapacity   int
	RateLimitRefillRate int
	RateLimitInterval   time.Duration

	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 15*time.Second)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "leadrelay")
	cfg.Environment = getenv("ENV", "production")
	cfg.StaticDir = getenv("STATIC_DIR", "static")

	cfg.SiteName = getenv("SITE_NAME", "SportStreamHD")
	cfg.SupportEmail = getenv("SUPPORT_EMAIL", "business@sportstreamhd.com")
	cfg.Timezone = getenv("MESSAGE_TIMEZONE", "Asia/Shanghai")

	cfg.VisitorCookie = getenv("VISITOR_COOKIE", "lr_vid")
	cfg.CookieSecure = envBool("COOKIE_SECURE", false)

	cfg.WebhookURL = webhookURL()
	cfg.WebhookSecret = getenv("WEBHOOK_SECRET", os.Getenv("DINGTALK_SECRET"))
	cfg.RelayTimeout = envDuration("RELAY_TIMEOUT", 5*time.Second)

	cfg.RedisAddr = getenv("REDIS_ADDR", "")
	cfg.AttributionTTL = envDuration("ATTRIBUTION_TTL", 24*time.Hour)

	cfg.GeoIPDB = getenv("GEOIP_DB", "")
	cfg.LabelsFile = getenv("LABELS_FILE", "")

	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.CHMaxOpenConns = envInt("CH_MAX_OPEN_CONNS", 10)
	cfg.CHMaxIdleConns = envInt("CH_MAX_IDLE_CONNS", 5)
	cfg.CHConnMaxLifetime = envDuration("CH_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.KafkaBrokers = envList("KAFKA_BROKERS", nil)
	cfg.KafkaTopic = getenv("KAFKA_TOPIC", "site-events")
	cfg.AnalyticsTimeout = envDuration("ANALYTICS_TIMEOUT", 2*time.Second)

	cfg.RateLimitEnabled = envBool("RATE_LIMIT_ENABLED", false)
	cfg.RateLimitCapacity = envInt("RATE_LIMIT_CAPACITY", 60)
	cfg.RateLimitRefillRate = envInt("RATE_LIMIT_REFILL_RATE", 20)
	cfg.RateLimitInterval = envDuration("RATE_LIMIT_INTERVAL", time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// webhookURL prefers an explicit WEBHOOK_URL and otherwise builds the
// DingTalk robot URL from DINGTALK_ACCESS_TOKEN.
func webhookURL() string {
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		return v
	}
	token := os.Getenv("DINGTALK_ACCESS_TOKEN")
	if token == "" {
		return ""
	}
	return dingTalkRobotURL + "?access_token=" + url.QueryEscape(token)
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
