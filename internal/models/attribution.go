package models

// Traffic mediums recognised by the attribution collector.
const (
	MediumDirect   = "direct"
	MediumOrganic  = "organic"
	MediumCPC      = "cpc"
	MediumReferral = "referral"
)

// Keyword provenance values.
const (
	KeywordOrganic = "organic"
	KeywordPaid    = "paid"
	KeywordUnknown = "unknown"
)

// Device classes.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Well-known sources.
const (
	SourceDirect   = "direct"
	SourceUnknown  = "unknown"
	SourceReferral = "referral"
	SourceGoogle   = "google"
	SourceFacebook = "facebook"
)

// DeviceInfo describes the visitor's browser environment. JSON names match the
// payload produced by the site's browser script.
type DeviceInfo struct {
	DeviceClass     string   `json:"device"`
	Browser         string   `json:"browser"`
	OS              string   `json:"os"`
	UserAgent       string   `json:"userAgent"`
	PrimaryLanguage string   `json:"language"`
	AllLanguages    []string `json:"languages"`
	IsBot           bool     `json:"isBot,omitempty"`
}

// AttributionSnapshot is the derived traffic-source record attached to a
// contact submission. It is computed once per page view and never stored
// beyond the 24h parameter cache.
type AttributionSnapshot struct {
	Source        string     `json:"source"`
	Medium        string     `json:"medium"`
	Campaign      string     `json:"campaign,omitempty"`
	Keyword       string     `json:"keyword,omitempty"`
	KeywordSource string     `json:"keywordSource"`
	Referrer      string     `json:"referrer"`
	LandingPage   string     `json:"landingPage"`
	Device        DeviceInfo `json:"device"`
	ClientIP      string     `json:"clientIP,omitempty"`
	GCLID         string     `json:"gclid,omitempty"`
	FBCLID        string     `json:"fbclid,omitempty"`
	Timestamp     int64      `json:"timestamp"`
}

// IsPaid reports whether the snapshot resolved to a paid channel.
func (s *AttributionSnapshot) IsPaid() bool {
	return s != nil && s.Medium == MediumCPC
}
