// Package testutil provides testing utilities for the fetch engine.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response defines the behavior for a mock origin endpoint.
type Response struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Origin is a configurable mock HTTP origin for testing.
type Origin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	conditionalCount  int
	lastRequestHeader http.Header
}

// NewOrigin creates a new mock origin server.
func NewOrigin() *Origin {
	origin := &Origin{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	origin.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin.mu.Lock()
		origin.requestCount++
		origin.pathCounts[r.URL.Path]++
		origin.lastRequestHeader = r.Header.Clone()

		// Track conditional requests
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			origin.conditionalCount++
		}
		origin.mu.Unlock()

		// Check for custom handler
		origin.mu.RLock()
		handler, exists := origin.handlers[r.URL.Path]
		origin.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		origin.defaultHandler(w, r)
	}))

	return origin
}

// URL returns the origin's base URL.
func (o *Origin) URL() string {
	return o.server.URL
}

// Close shuts down the origin server.
func (o *Origin) Close() {
	o.server.Close()
}

// Reset clears all tracking counters.
func (o *Origin) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requestCount = 0
	o.pathCounts = make(map[string]int)
	o.conditionalCount = 0
	o.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (o *Origin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (o *Origin) SetResponse(path string, resp Response) {
	o.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetSequence configures a path to serve each response once, in order,
// repeating the last response for any further requests. Useful for
// scripting transient-then-healthy origins.
func (o *Origin) SetSequence(path string, responses ...Response) {
	var mu sync.Mutex
	served := 0

	o.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := served
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		served++
		mu.Unlock()

		writeResponse(w, responses[idx])
	})
}

// RequestCount returns the total number of requests received.
func (o *Origin) RequestCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.requestCount
}

// PathCount returns the number of requests received for one path.
func (o *Origin) PathCount(path string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pathCounts[path]
}

// ConditionalCount returns the number of conditional requests received.
func (o *Origin) ConditionalCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (o *Origin) LastRequestHeader() http.Header {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRequestHeader
}

// writeResponse renders one scripted Response.
func writeResponse(w http.ResponseWriter, resp Response) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// defaultHandler serves a plain 200 HTML page.
func (o *Origin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body>ok</body></html>"))
}

// NewHealthyResponse creates a standard 200 OK HTML response.
func NewHealthyResponse(data string) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewCacheableResponse creates a 200 OK response carrying cache validators
// and a freshness lifetime.
func NewCacheableResponse(data, etag string, ttl time.Duration) Response {
	return Response{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
			"ETag":         etag,
			"Expires":      time.Now().Add(ttl).UTC().Format(http.TimeFormat),
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() Response {
	return Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       "rate limit exceeded",
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
	}
}

// NewConditionalHandler creates a handler that serves data with the given
// ETag and answers matching If-None-Match requests with 304 Not Modified.
func NewConditionalHandler(etag string, data string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		// Check If-None-Match header
		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Expires", time.Now().Add(5*time.Minute).UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		// Full response
		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
