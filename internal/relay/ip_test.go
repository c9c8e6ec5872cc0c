package relay

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/leadrelay/internal/geoip"
)

func TestResolveClientIP(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, UnknownIP, ResolveClientIP(h))

	h.Set("X-Vercel-Forwarded-For", "203.0.113.3")
	assert.Equal(t, "203.0.113.3", ResolveClientIP(h))

	h.Set("X-Real-IP", "203.0.113.2")
	assert.Equal(t, "203.0.113.2", ResolveClientIP(h))

	h.Set("X-Forwarded-For", " 203.0.113.1 , 10.0.0.1")
	assert.Equal(t, "203.0.113.1", ResolveClientIP(h))
}

func TestClassifyIP(t *testing.T) {
	tests := map[string]IPClass{
		"":            IPLocal,
		"unknown":     IPLocal,
		"localhost":   IPLocal,
		"::1":         IPLocal,
		"127.0.0.1":   IPLocal,
		"127.0.0.2":   IPLocal,
		"10.1.2.3":    IPInternal,
		"192.168.1.5": IPInternal,
		"172.16.0.9":  IPInternal,
		"fd00::1":     IPInternal,
		"8.8.8.8":     IPPublic,
		"172.32.0.1":  IPPublic,
		"2001:db8::1": IPPublic,
		"garbage":     IPPublic,
	}
	for ip, want := range tests {
		assert.Equal(t, want, ClassifyIP(ip), ip)
	}
}

func TestFormatIP(t *testing.T) {
	assert.Equal(t, "🏠 本地开发环境", FormatIP("unknown", nil))
	assert.Equal(t, "🏢 内网地址", FormatIP("192.168.0.7", nil))
	assert.Equal(t, "🌍 IP: 8.8.8.8", FormatIP("8.8.8.8", nil))
	assert.Equal(t, "🌍 IPv6: 2001:db8::1", FormatIP("2001:db8::1", nil))
}

func TestFormatIPWithGeo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"net":"203.0.113.0/24","country":"CN","name":"中国"},{"net":"198.51.100.0/24","country":"US"}]`), 0o600))
	g, err := geoip.Init(path)
	require.NoError(t, err)

	assert.Equal(t, "🌍 IP: 203.0.113.8 (中国)", FormatIP("203.0.113.8", g))
	assert.Equal(t, "🌍 IP: 198.51.100.8 (US)", FormatIP("198.51.100.8", g))
	assert.Equal(t, "🌍 IP: 8.8.8.8", FormatIP("8.8.8.8", g))
}
