package fetch

import (
	"net/http"
	"net/url"
	"time"

	"github.com/yomika/yomika/pkg/cache"
	"github.com/yomika/yomika/pkg/ratelimit"
)

// Config holds the per-call fetch configuration. The engine never mutates
// it; a Config value can be reused across calls and batches.
//
// Build configs from DefaultConfig or AggressiveConfig rather than from a
// zero value: the zero value carries no timeout, no limiter, and does not
// follow redirects.
type Config struct {
	// Headers replaces the default browser header set when non-nil.
	Headers map[string]string

	// Params are query parameters merged into the request URL.
	Params url.Values

	// Cookies are sent with every request.
	Cookies []*http.Cookie

	// Timeout bounds each attempt, including the body read.
	// Zero means no timeout.
	Timeout time.Duration

	// FollowRedirects enables transparent redirect following. When false,
	// a 3xx response is returned as a successful Result.
	FollowRedirects bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// ExpectedContentType, when set, must be a substring of the response's
	// Content-Type header. A mismatch is a permanent failure.
	ExpectedContentType string

	// Proxy routes requests through the given proxy URL. Empty uses the
	// environment's proxy settings.
	Proxy string

	// Limiter paces request dispatch when non-nil. Calls sharing one
	// Limiter share its rate budget.
	Limiter *ratelimit.Limiter

	// Retry tunes the backoff policy for transient failures.
	Retry RetryConfig

	// Cache, when non-nil, serves fresh cached responses without touching
	// the network and revalidates stale ones with conditional requests.
	Cache *cache.Manager

	// MaxBodyBytes caps how much of a response body is read.
	// Zero means unlimited.
	MaxBodyBytes int64

	// OnSuccess is invoked with the final Result of a successful fetch.
	// Panics inside the callback are recovered and logged.
	OnSuccess func(*Result)

	// OnFailure is invoked with the terminal Error of a failed fetch.
	// Panics inside the callback are recovered and logged.
	OnFailure func(*Error)
}
