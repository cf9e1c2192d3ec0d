package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestParseExpires(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
		headers := http.Header{}
		headers.Set("Expires", expires.Format(http.TimeFormat))

		got := parseExpires(headers)
		if !got.Equal(expires) {
			t.Errorf("parseExpires() = %v, want %v", got, expires)
		}
	})

	t.Run("missing header uses default TTL", func(t *testing.T) {
		got := parseExpires(http.Header{})
		ttl := time.Until(got)
		if ttl < DefaultTTL-time.Second || ttl > DefaultTTL {
			t.Errorf("fallback TTL = %v, want ~%v", ttl, DefaultTTL)
		}
	})

	t.Run("malformed header uses default TTL", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Expires", "not a date")

		got := parseExpires(headers)
		ttl := time.Until(got)
		if ttl < DefaultTTL-time.Second || ttl > DefaultTTL {
			t.Errorf("fallback TTL = %v, want ~%v", ttl, DefaultTTL)
		}
	})

	t.Run("past expiry clamps to now", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Expires", time.Now().Add(-1*time.Hour).UTC().Format(http.TimeFormat))

		got := parseExpires(headers)
		if time.Until(got) > time.Second {
			t.Errorf("past Expires produced future expiry: %v", got)
		}
	})
}

func TestShouldRevalidate(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, false},
		{"no validators", &Entry{}, false},
		{"etag only", &Entry{ETag: `"abc"`}, true},
		{"last-modified only", &Entry{LastModified: time.Now()}, true},
		{"both validators", &Entry{ETag: `"abc"`, LastModified: time.Now()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRevalidate(tt.entry); got != tt.want {
				t.Errorf("ShouldRevalidate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddConditionalHeaders(t *testing.T) {
	t.Run("prefers etag", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "https://example.com", nil)
		entry := &Entry{ETag: `"abc"`, LastModified: time.Now()}

		AddConditionalHeaders(req, entry)

		if got := req.Header.Get("If-None-Match"); got != `"abc"` {
			t.Errorf("If-None-Match = %q, want %q", got, `"abc"`)
		}
		if req.Header.Get("If-Modified-Since") != "" {
			t.Error("If-Modified-Since set despite ETag being present")
		}
	})

	t.Run("falls back to last-modified", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "https://example.com", nil)
		lastMod := time.Now().Add(-1 * time.Hour).UTC().Truncate(time.Second)
		entry := &Entry{LastModified: lastMod}

		AddConditionalHeaders(req, entry)

		if got := req.Header.Get("If-Modified-Since"); got != lastMod.Format(http.TimeFormat) {
			t.Errorf("If-Modified-Since = %q, want %q", got, lastMod.Format(http.TimeFormat))
		}
	})

	t.Run("nil entry is a no-op", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "https://example.com", nil)

		AddConditionalHeaders(req, nil)

		if req.Header.Get("If-None-Match") != "" || req.Header.Get("If-Modified-Since") != "" {
			t.Error("nil entry added conditional headers")
		}
	})
}
