// Package cache provides HTTP response caching with a Redis backend.
//
// The cache manager stores successful responses keyed by URL and query
// parameters, with the following features:
//
// - TTL derived from the origin's Expires header (default fallback TTL)
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Stale entries retained for revalidation instead of refetching
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.Key{
//		URL:    "https://example.com/page",
//		Params: url.Values{"q": []string{"go"}},
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the origin
//	}
//
// # Caching a Response
//
//	// Convert a fetched response to a cache entry
//	entry := cache.NewEntry(resp.StatusCode, resp.Header, body)
//
//	// Store in cache
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
// A stale entry is not discarded: when it carries an ETag or Last-Modified
// validator, the fetch engine revalidates it with a conditional request and
// serves the cached body on 304 Not Modified.
//
//	if entry.IsExpired() && cache.ShouldRevalidate(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - fetch_cache_hits_total{layer="redis"} - Cache hits
//   - fetch_cache_misses_total - Cache misses
//   - fetch_cache_size_bytes{layer="redis"} - Cache size
//   - fetch_cache_errors_total{operation} - Cache operation errors
package cache
