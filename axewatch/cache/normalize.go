package cache

import "strings"

// NormalizeURL canonicalizes a page URL so the same logical page always maps
// to one cache key, regardless of how the client reported it. Trailing
// slashes are stripped and bare paths get an https:// prefix. Idempotent.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + strings.TrimLeft(u, "/")
	}
	// Never trim below the scheme separator: "https://" must stay a fixed
	// point of normalization.
	for strings.HasSuffix(u, "/") && !strings.HasSuffix(u, "://") {
		u = strings.TrimSuffix(u, "/")
	}
	return u
}
