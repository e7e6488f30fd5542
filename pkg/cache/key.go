package cache

import (
	"net/url"
	"strings"
)

// DefaultPrefix namespaces all keys written by this package.
const DefaultPrefix = "aircraftdb"

// CacheKey identifies one stored database document.
type CacheKey struct {
	// Prefix namespaces keys in a shared Redis (default: DefaultPrefix)
	Prefix string

	// Origin is the database base URL the document was fetched from
	// (e.g., "http://feeder.local/tar1090")
	Origin string

	// Path is the document path below the origin (e.g., "db/A.json")
	Path string
}

// String generates a deterministic cache key string.
// Format: prefix:host/basepath:path
//
// Example:
//
//	aircraftdb:feeder.local/tar1090:db/AB.json
//
// The scheme is dropped so http and https mirrors of the same host share
// entries. Host is lowercased; paths keep their case since shard keys are
// already normalized by the caller.
func (k CacheKey) String() string {
	prefix := k.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	parts := []string{prefix}
	if origin := normalizeOrigin(k.Origin); origin != "" {
		parts = append(parts, origin)
	}
	if path := strings.Trim(k.Path, "/"); path != "" {
		parts = append(parts, path)
	}
	return strings.Join(parts, ":")
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimRight(origin, "/")
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.ToLower(origin)
	}
	return strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}
