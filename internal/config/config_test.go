package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WEBHOOK_URL", "DINGTALK_ACCESS_TOKEN", "KAFKA_BROKERS",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_CAPACITY", "RATE_LIMIT_INTERVAL"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "8787", cfg.Port)
	assert.Empty(t, cfg.WebhookURL)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, time.Minute, cfg.RateLimitInterval)
	assert.Equal(t, 60, cfg.RateLimitCapacity)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
}

func TestWebhookURLFromToken(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("DINGTALK_ACCESS_TOKEN", "abc+def")

	cfg := Load()
	assert.Equal(t, "https://oapi.dingtalk.com/robot/send?access_token=abc%2Bdef", cfg.WebhookURL)
}

func TestExplicitWebhookURLWins(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "http://hooks.local/x")
	t.Setenv("DINGTALK_ACCESS_TOKEN", "abc")

	assert.Equal(t, "http://hooks.local/x", Load().WebhookURL)
}

func TestEnvParsers(t *testing.T) {
	t.Setenv("T_DUR", "30")
	assert.Equal(t, 30*time.Second, envDuration("T_DUR", time.Second))
	t.Setenv("T_DUR", "250ms")
	assert.Equal(t, 250*time.Millisecond, envDuration("T_DUR", time.Second))
	t.Setenv("T_DUR", "soon")
	assert.Equal(t, time.Second, envDuration("T_DUR", time.Second))

	t.Setenv("T_BOOL", "nope")
	assert.True(t, envBool("T_BOOL", true))

	t.Setenv("T_INT", "x")
	assert.Equal(t, 7, envInt("T_INT", 7))

	t.Setenv("T_LIST", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, envList("T_LIST", nil))
	t.Setenv("T_LIST", " , ")
	assert.Equal(t, []string{"z"}, envList("T_LIST", []string{"z"}))
}
