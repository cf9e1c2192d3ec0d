package fetch

import (
	"time"

	"github.com/yomika/yomika/pkg/ratelimit"
)

// Defaults shared by the configuration presets.
const (
	// DefaultTimeout bounds a single request attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the conservative pacing preset.
	DefaultRequestsPerSecond = 5

	// AggressiveRequestsPerSecond is the high-throughput pacing preset for
	// origins known to tolerate it.
	AggressiveRequestsPerSecond = 250
)

// DefaultHeaders returns the browser-style header set sent when the caller
// supplies none. Sites sniff these values, so they are part of the external
// contract and must not drift. The map is freshly allocated on every call;
// mutating one caller's copy cannot affect another's.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}

// DefaultConfig returns the conservative configuration: 30s attempt
// timeout, redirects followed, TLS verified, 5 requests per second, default
// retry policy. Each call allocates a fresh Limiter; callers that want
// several fetches to share one rate budget must reuse the same Config value
// or the same Limiter.
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		FollowRedirects: true,
		Limiter:         ratelimit.New(DefaultRequestsPerSecond),
		Retry:           DefaultRetryConfig(),
	}
}

// AggressiveConfig returns the high-throughput preset: identical to
// DefaultConfig except pacing at 250 requests per second. There is no
// automatic selection between the two presets; the caller chooses.
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Limiter = ratelimit.New(AggressiveRequestsPerSecond)
	return cfg
}
