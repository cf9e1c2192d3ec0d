package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// RevalidateWindow is how long an entry stays in Redis past its freshness
// lifetime. A stale-but-present entry with validators lets the fetch engine
// revalidate with a conditional request instead of refetching the body.
const RevalidateWindow = 24 * time.Hour

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist. A stale entry is returned
// rather than discarded; callers decide between serving it, revalidating
// it, and refetching (check IsExpired).
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	// Get data from Redis
	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	// Unmarshal entry
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Cache hit
	CacheHits.WithLabelValues("redis").Inc()
	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return &entry, nil
}

// Set stores a cache entry. The Redis TTL is the entry's remaining
// freshness plus the revalidation window, so the entry outlives its
// Expires time and stays available for conditional requests.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	cacheKey := key.String()

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already stale, don't cache
		return nil
	}

	// Marshal entry
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// Store in Redis, held past freshness for revalidation
	if err := m.redis.Set(ctx, cacheKey, data, ttl+RevalidateWindow).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	// Update cache size metric
	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	cacheKey := key.String()

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// UpdateTTL updates the expiration of an existing cache entry.
// This is useful when receiving a 304 Not Modified response with a new
// expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key Key, newExpires time.Time) error {
	// Get existing entry
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	// Update expires time
	entry.Expires = newExpires

	// Re-save with new TTL
	return m.Set(ctx, key, entry)
}
