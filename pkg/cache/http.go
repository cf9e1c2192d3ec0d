package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no expires header is present
	DefaultTTL = 5 * time.Minute
)

// parseExpires parses the Expires header from HTTP headers.
// Returns the parsed expiration time, or current time + DefaultTTL if the
// header is absent or unparseable.
func parseExpires(headers http.Header) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		// No expires header - use default TTL
		return time.Now().Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		// Failed to parse expires header - use default TTL
		return time.Now().Add(DefaultTTL)
	}

	// Validate that TTL is not negative
	if expires.Before(time.Now()) {
		// Already expired - use minimal TTL
		return time.Now()
	}

	return expires
}

// ShouldRevalidate determines if a stale entry can be revalidated with a
// conditional request (If-None-Match or If-Modified-Since) instead of
// refetched in full.
func ShouldRevalidate(entry *Entry) bool {
	if entry == nil {
		return false
	}
	// A conditional request needs either an ETag or a Last-Modified validator
	return entry.ETag != "" || !entry.LastModified.IsZero()
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since
// headers to the request from the cache entry's validators.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	// Prefer ETag over Last-Modified (more accurate)
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
