package relay

import (
	"net"
	"net/http"
	"strings"

	"github.com/patrickwarner/leadrelay/internal/geoip"
)

// UnknownIP is reported when no proxy header names the client.
const UnknownIP = "unknown"

// clientIPHeaders are consulted in order; the first hop of the first
// non-empty header wins.
var clientIPHeaders = []string{"X-Forwarded-For", "X-Real-IP", "X-Vercel-Forwarded-For"}

// ResolveClientIP returns the visitor IP named by the fronting proxy. The
// value is for display only and is never trusted for access decisions.
func ResolveClientIP(h http.Header) string {
	for _, name := range clientIPHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if first := strings.TrimSpace(strings.Split(v, ",")[0]); first != "" {
			return first
		}
	}
	return UnknownIP
}

// IPClass buckets an address for display.
type IPClass int

const (
	IPLocal IPClass = iota
	IPInternal
	IPPublic
)

// ClassifyIP buckets raw as local, internal or public. Unparseable values
// other than the local sentinels count as public and are shown raw.
func ClassifyIP(raw string) IPClass {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", UnknownIP, "localhost", "::1", "127.0.0.1":
		return IPLocal
	}
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return IPPublic
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return IPLocal
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return IPInternal
	}
	return IPPublic
}

// FormatIP renders the IP line of a lead message. Public addresses get a
// country suffix when geo knows them; geo may be nil.
func FormatIP(raw string, geo *geoip.GeoIP) string {
	switch ClassifyIP(raw) {
	case IPLocal:
		return "🏠 本地开发环境"
	case IPInternal:
		return "🏢 内网地址"
	}

	raw = strings.TrimSpace(raw)
	ip := net.ParseIP(raw)
	prefix := "🌍 IP: "
	if ip != nil && ip.To4() == nil {
		prefix = "🌍 IPv6: "
	}
	line := prefix + raw
	if loc, ok := geo.Lookup(ip, "zh-CN"); ok {
		name := loc.CountryName
		if name == "" {
			name = loc.CountryCode
		}
		line += " (" + name + ")"
	}
	return line
}
