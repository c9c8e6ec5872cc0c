package attribution

import (
	"strings"

	"golang.org/x/text/language"
)

// ParseAcceptLanguage turns an Accept-Language header into an ordered
// language list, highest preference first. A malformed header yields nil.
func ParseAcceptLanguage(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		s := t.String()
		if s == "und" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// LanguageName looks up a display name for a language code. Lookup tries the
// exact code, then its base language. Unknown codes are returned verbatim.
func LanguageName(names map[string]string, code string) string {
	if code == "" {
		return code
	}
	if n, ok := names[code]; ok {
		return n
	}
	if n, ok := names[strings.ToLower(code)]; ok {
		return n
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	if n, ok := names[base.String()]; ok {
		return n
	}
	return code
}
