package cache

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxDocumentSize bounds a single stored document. The aggregate type
// table is the largest file in a tar1090 database at a few hundred KiB.
const DefaultMaxDocumentSize = 16 << 20

// ErrDocumentTooLarge is returned when a response body exceeds the size limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// ResponseToEntry reads the body of a successful response into a CacheEntry
// and keeps its validators. maxBytes <= 0 uses DefaultMaxDocumentSize.
// The caller still owns and closes resp.Body.
func ResponseToEntry(resp *http.Response, maxBytes int64) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentSize
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDocumentTooLarge, maxBytes)
	}

	entry := &CacheEntry{
		Data:     body,
		ETag:     resp.Header.Get("ETag"),
		CachedAt: time.Now(),
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		entry.LastModified = lm
	}
	return entry, nil
}
