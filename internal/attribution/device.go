package attribution

import (
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/leadrelay/internal/models"
)

const unknownValue = "unknown"

// uaRule matches when the user agent contains every entry of all and none of
// the entries of not. any, when set, requires at least one of its entries.
type uaRule struct {
	name string
	any  []string
	all  []string
	not  []string
}

func (r uaRule) matches(ua string) bool {
	for _, s := range r.all {
		if !strings.Contains(ua, s) {
			return false
		}
	}
	for _, s := range r.not {
		if strings.Contains(ua, s) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, s := range r.any {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

func firstMatch(rules []uaRule, ua, fallback string) string {
	for _, r := range rules {
		if r.matches(ua) {
			return r.name
		}
	}
	return fallback
}

// Tablet rules precede mobile rules: iPad and Android tablets also match
// several mobile substrings.
var deviceRules = []uaRule{
	{name: models.DeviceTablet, any: []string{"iPad"}},
	{name: models.DeviceTablet, all: []string{"Android", "Tablet"}},
	{name: models.DeviceTablet, any: []string{"Tablet"}},
	{name: models.DeviceMobile, any: []string{"iPhone", "Android", "BlackBerry", "Opera Mini", "IEMobile", "WPDesktop"}},
}

// Edge carries "Chrome" in its UA, Chrome carries "Safari".
var browserRules = []uaRule{
	{name: "Edge", any: []string{"Edg"}},
	{name: "Chrome", any: []string{"Chrome"}},
	{name: "Firefox", any: []string{"Firefox"}},
	{name: "Safari", any: []string{"Safari"}, not: []string{"Chrome"}},
	{name: "IE", any: []string{"MSIE", "Trident"}},
}

// Android UAs carry "Linux" and iOS UAs carry "like Mac OS X".
var osRules = []uaRule{
	{name: "Windows", any: []string{"Windows"}},
	{name: "Android", any: []string{"Android"}},
	{name: "iOS", any: []string{"iPhone", "iPad", "iPod"}},
	{name: "macOS", any: []string{"Mac OS", "macOS"}},
	{name: "Linux", any: []string{"Linux"}},
}

// DetectDevice fingerprints a user agent and language list.
func DetectDevice(userAgent string, languages []string) models.DeviceInfo {
	info := models.DeviceInfo{
		DeviceClass:     firstMatch(deviceRules, userAgent, models.DeviceDesktop),
		Browser:         firstMatch(browserRules, userAgent, unknownValue),
		OS:              firstMatch(osRules, userAgent, unknownValue),
		UserAgent:       userAgent,
		PrimaryLanguage: unknownValue,
		AllLanguages:    []string{},
	}
	if userAgent != "" {
		info.IsBot = uasurfer.Parse(userAgent).IsBot()
	}

	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			info.AllLanguages = append(info.AllLanguages, l)
		}
	}
	if len(info.AllLanguages) > 0 {
		info.PrimaryLanguage = info.AllLanguages[0]
	}
	return info
}
