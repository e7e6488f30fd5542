package cache

import (
	"time"
)

// CacheEntry represents a stored database document.
type CacheEntry struct {
	// Data is the raw document body
	Data []byte `json:"data"`

	// ETag as served by the origin, kept for diagnostics
	ETag string `json:"etag,omitempty"`

	// LastModified is the origin's last-modified time, if any
	LastModified time.Time `json:"last_modified,omitempty"`

	// CachedAt is when we stored this document
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the document was stored.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Size returns the document size in bytes.
func (e *CacheEntry) Size() int {
	return len(e.Data)
}
