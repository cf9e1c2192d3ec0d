package cache

import (
	"net/http"
	"time"
)

// Entry represents a cached HTTP response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// LastModified is when the data was last modified (from the
	// last-modified header)
	LastModified time.Time `json:"last_modified"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds a cache entry from a response's status, headers, and body.
// The expiration comes from the Expires header, falling back to DefaultTTL
// when the header is absent or unparseable.
func NewEntry(statusCode int, headers http.Header, body []byte) *Entry {
	entry := &Entry{
		Data:       body,
		ETag:       headers.Get("ETag"),
		StatusCode: statusCode,
		Headers:    headers.Clone(),
		CachedAt:   time.Now(),
	}

	entry.Expires = parseExpires(headers)

	if lastModStr := headers.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
