package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached response by URL and query parameters.
type Key struct {
	// URL is the fetched URL as given by the caller.
	URL string

	// Params are query parameters sent alongside the URL's own query.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: fetch:url:param1=val1:param2=val2
//
// Example:
//
//	fetch:https://example.com/page:order=asc:q=go
func (k Key) String() string {
	parts := []string{"fetch", k.URL}

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		paramKeys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			paramKeys = append(paramKeys, key)
		}
		sort.Strings(paramKeys)

		for _, key := range paramKeys {
			for _, value := range k.Params[key] {
				parts = append(parts, fmt.Sprintf("%s=%s", key, value))
			}
		}
	}

	return strings.Join(parts, ":")
}
