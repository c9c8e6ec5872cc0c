package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves visitor countries for the lead message, using a MaxMind
// database or a JSON CIDR list as fallback.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

type record struct {
	net     *net.IPNet
	country string
	name    string
}

// Location is the result of a lookup.
type Location struct {
	CountryCode string
	// CountryName is localized when the database carries the requested
	// language, else English, else empty.
	CountryName string
}

// Init opens the GeoIP2 database located at path. A file that is not a
// MaxMind database is read as JSON: [{"net":"1.2.3.0/24","country":"CN","name":"中国"}].
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Name    string `json:"name"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, country: e.Country, name: e.Name})
		}
	}
	return g, nil
}

// Lookup returns the location of ip. ok is false when nothing is known.
func (g *GeoIP) Lookup(ip net.IP, lang string) (Location, bool) {
	if g == nil || ip == nil {
		return Location{}, false
	}
	if g.db != nil {
		rec, err := g.db.Country(ip)
		if err == nil && rec.Country.IsoCode != "" {
			name := rec.Country.Names[lang]
			if name == "" {
				name = rec.Country.Names["en"]
			}
			return Location{CountryCode: rec.Country.IsoCode, CountryName: name}, true
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return Location{CountryCode: r.country, CountryName: r.name}, true
		}
	}
	return Location{}, false
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
