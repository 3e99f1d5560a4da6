package fetch

import (
	"sort"
	"strings"
)

// CookieHeader renders a cookie map as a Cookie request header value. Browser
// strategies have no per-request cookie jar, so cookies travel as a header.
func CookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name])
	}
	return strings.Join(pairs, "; ")
}
