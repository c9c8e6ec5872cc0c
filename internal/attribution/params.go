package attribution

import (
	"net/url"
	"strings"
)

// Tracked campaign parameter names.
const (
	ParamSource   = "utm_source"
	ParamMedium   = "utm_medium"
	ParamCampaign = "utm_campaign"
	ParamTerm     = "utm_term"
	ParamContent  = "utm_content"
	ParamGCLID    = "gclid"
	ParamFBCLID   = "fbclid"
)

// TrackedParams lists the parameters persisted across navigation.
var TrackedParams = []string{
	ParamSource, ParamMedium, ParamCampaign, ParamTerm, ParamContent, ParamGCLID, ParamFBCLID,
}

// keywordParams are checked on the current URL only, after utm_term.
var keywordParams = []string{"bd_term", "qh_term", "sg_term", "keyword", "kw", "q", "search_term"}

// Params is a set of UTM and click-id values keyed by parameter name.
type Params map[string]string

// Get returns the value for key or "".
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// IsEmpty reports whether p carries no non-empty value.
func (p Params) IsEmpty() bool {
	for _, v := range p {
		if v != "" {
			return false
		}
	}
	return true
}

// Merge returns base overlaid with over, key by key. Empty values in over
// do not erase base values.
func Merge(base, over Params) Params {
	out := make(Params, len(base)+len(over))
	for k, v := range base {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range over {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ExtractParams pulls the tracked parameters out of rawURL. A malformed URL
// yields an empty set.
func ExtractParams(rawURL string) Params {
	out := Params{}
	q, ok := queryOf(rawURL)
	if !ok {
		return out
	}
	for _, key := range TrackedParams {
		if v := q.Get(key); v != "" {
			out[key] = v
		}
	}
	return out
}

// keywordFromURL returns the first non-empty keyword-like parameter on
// rawURL, excluding utm_term which the caller resolves from merged params.
func keywordFromURL(rawURL string) string {
	q, ok := queryOf(rawURL)
	if !ok {
		return ""
	}
	for _, key := range keywordParams {
		if v := q.Get(key); v != "" {
			return decodeKeyword(v)
		}
	}
	return ""
}

func queryOf(rawURL string) (url.Values, bool) {
	if rawURL == "" {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil && len(q) == 0 {
		return nil, false
	}
	return q, true
}

// decodeKeyword undoes a second layer of percent-encoding, which some ad
// platforms apply to keyword values. Values that do not decode cleanly are
// returned unchanged.
func decodeKeyword(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	if d, err := url.PathUnescape(v); err == nil {
		return d
	}
	return v
}

// DecorateLink copies params onto link when it points at the contact page,
// so a campaign survives hops that lose the visitor cookie. Other links, and
// unparseable ones, are returned unchanged.
func DecorateLink(link string, params Params) string {
	if params.IsEmpty() {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if strings.TrimSuffix(u.Path, "/") != "/contact" {
		return link
	}
	q := u.Query()
	for _, key := range TrackedParams {
		if v := params.Get(key); v != "" {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
