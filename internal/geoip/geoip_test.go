package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFallback(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "geo_fallback.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestFallbackLookup(t *testing.T) {
	path := writeFallback(t, `[
		{"net":"203.0.113.0/24","country":"CN","name":"中国"},
		{"net":"198.51.100.0/24","country":"US"},
		{"net":"not-a-cidr","country":"XX"}
	]`)
	g, err := Init(path)
	require.NoError(t, err)
	defer g.Close()

	loc, ok := g.Lookup(net.ParseIP("203.0.113.9"), "zh-CN")
	assert.True(t, ok)
	assert.Equal(t, Location{CountryCode: "CN", CountryName: "中国"}, loc)

	loc, ok = g.Lookup(net.ParseIP("198.51.100.1"), "en")
	assert.True(t, ok)
	assert.Equal(t, "US", loc.CountryCode)

	_, ok = g.Lookup(net.ParseIP("192.0.2.1"), "en")
	assert.False(t, ok)
}

func TestInitErrors(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)

	_, err = Init(writeFallback(t, "{broken"))
	assert.Error(t, err)
}

func TestNilGeoIP(t *testing.T) {
	var g *GeoIP
	_, ok := g.Lookup(net.ParseIP("203.0.113.9"), "en")
	assert.False(t, ok)
	assert.NoError(t, g.Close())
}
