package shared

import "strings"

// ParseCookies reads a raw Cookie request header into a name → value map.
//
// Pairs are separated by ";" and split on the first "=", so values may themselves contain "=". The first
// occurrence of a duplicated name wins, matching the order browsers send more specific cookies in. Pairs
// without a name are skipped, values are returned verbatim (no unquoting or URL decoding), and an empty
// header yields an empty, non-nil map.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)

	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if _, seen := cookies[name]; !seen {
			cookies[name] = strings.TrimSpace(value)
		}
	}

	return cookies
}

// CookieValue returns the value of the named cookie from a raw Cookie header.
func CookieValue(header, name string) (string, bool) {
	v, ok := ParseCookies(header)[name]
	return v, ok
}
