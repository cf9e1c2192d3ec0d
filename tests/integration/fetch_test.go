package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yomika/yomika/internal/testutil"
	"github.com/yomika/yomika/pkg/batch"
	"github.com/yomika/yomika/pkg/cache"
	"github.com/yomika/yomika/pkg/fetch"
	"github.com/yomika/yomika/pkg/ratelimit"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// testConfig returns a fast-retry config wired to the given cache.
func testConfig(manager *cache.Manager) fetch.Config {
	return fetch.Config{
		Timeout:         5 * time.Second,
		FollowRedirects: true,
		Cache:           manager,
		Retry: fetch.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    20 * time.Millisecond,
			MaxBackoff:        100 * time.Millisecond,
			BackoffMultiplier: 2.0,
			MaxElapsed:        10 * time.Second,
		},
	}
}

// TestFullFetchFlow covers the whole pipeline: throttle, cache miss,
// dispatch, cache store, then a second fetch served from cache.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewOrigin()
	defer origin.Close()

	origin.SetResponse("/page", testutil.NewCacheableResponse("<html>cached page</html>", `"v1"`, 5*time.Minute))

	cfg := testConfig(cache.NewManager(redisClient))
	cfg.Limiter = ratelimit.New(50)

	ctx := context.Background()
	target := origin.URL() + "/page"

	res, err := fetch.Fetch(ctx, target, cfg)
	if err != nil {
		t.Fatalf("first fetch error: %v", err)
	}
	if string(res.Content) != "<html>cached page</html>" {
		t.Errorf("Content = %q", res.Content)
	}
	if origin.RequestCount() != 1 {
		t.Errorf("origin requests = %d, want 1", origin.RequestCount())
	}

	// Second fetch is fresh in cache: no network call.
	res2, err := fetch.Fetch(ctx, target, cfg)
	if err != nil {
		t.Fatalf("second fetch error: %v", err)
	}
	if string(res2.Content) != string(res.Content) {
		t.Error("cached fetch returned different content")
	}
	if origin.RequestCount() != 1 {
		t.Errorf("origin requests = %d after cached fetch, want 1", origin.RequestCount())
	}
}

// TestConditionalRevalidation lets an entry go stale, then verifies the
// engine revalidates with If-None-Match and serves the cached body on 304.
func TestConditionalRevalidation(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewOrigin()
	defer origin.Close()

	// First response is fresh for only half a second; the 304 branch of
	// the conditional handler extends freshness by five minutes.
	etag := `"etag-1"`
	origin.SetHandler("/doc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		if r.Header.Get("If-None-Match") == etag {
			w.Header().Set("Expires", time.Now().Add(5*time.Minute).UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(500*time.Millisecond).UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>stable doc</html>"))
	})

	manager := cache.NewManager(redisClient)
	cfg := testConfig(manager)

	ctx := context.Background()
	target := origin.URL() + "/doc"

	if _, err := fetch.Fetch(ctx, target, cfg); err != nil {
		t.Fatalf("first fetch error: %v", err)
	}

	// Let the entry go stale while its validators survive in Redis.
	time.Sleep(700 * time.Millisecond)

	res, err := fetch.Fetch(ctx, target, cfg)
	if err != nil {
		t.Fatalf("revalidating fetch error: %v", err)
	}
	if string(res.Content) != "<html>stable doc</html>" {
		t.Errorf("Content = %q, want cached body served on 304", res.Content)
	}
	if origin.ConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", origin.ConditionalCount())
	}
}

// TestRetryTransientErrors verifies a scripted 500-500-200 origin
// succeeds on the third attempt.
func TestRetryTransientErrors(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewOrigin()
	defer origin.Close()

	origin.SetSequence("/flaky",
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewHealthyResponse("recovered"),
	)

	cfg := testConfig(cache.NewManager(redisClient))

	res, err := fetch.Fetch(context.Background(), origin.URL()+"/flaky", cfg)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if string(res.Content) != "recovered" {
		t.Errorf("Content = %q, want recovered", res.Content)
	}
	if origin.PathCount("/flaky") != 3 {
		t.Errorf("attempts = %d, want 3", origin.PathCount("/flaky"))
	}
}

// TestNoRetryPermanentMismatch verifies a content-type mismatch fails
// after exactly one attempt.
func TestNoRetryPermanentMismatch(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewOrigin()
	defer origin.Close()

	origin.SetResponse("/api", testutil.Response{
		StatusCode: 200,
		Body:       `{"ok":true}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	cfg := testConfig(cache.NewManager(redisClient))
	cfg.ExpectedContentType = "text/html"

	_, err := fetch.Fetch(context.Background(), origin.URL()+"/api", cfg)

	var ferr *fetch.Error
	if !errors.As(err, &ferr) || ferr.Kind != fetch.KindContentType {
		t.Errorf("error = %v, want KindContentType", err)
	}
	if origin.PathCount("/api") != 1 {
		t.Errorf("attempts = %d, want 1", origin.PathCount("/api"))
	}
}

// TestBatchWithSharedCache runs a batch twice; the second run is served
// entirely from cache.
func TestBatchWithSharedCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewOrigin()
	defer origin.Close()

	origin.SetResponse("/a", testutil.NewCacheableResponse("page a", `"a1"`, 5*time.Minute))
	origin.SetResponse("/b", testutil.NewCacheableResponse("page b", `"b1"`, 5*time.Minute))
	origin.SetResponse("/c", testutil.NewCacheableResponse("page c", `"c1"`, 5*time.Minute))

	cfg := batch.Config{
		Fetch:          testConfig(cache.NewManager(redisClient)),
		MaxConcurrency: 3,
	}

	urls := []string{origin.URL() + "/a", origin.URL() + "/b", origin.URL() + "/c"}

	ctx := context.Background()
	items := batch.New(cfg).FetchAll(ctx, urls)
	for i, item := range items {
		if item.Err != nil {
			t.Fatalf("items[%d].Err = %v", i, item.Err)
		}
	}
	if origin.RequestCount() != 3 {
		t.Errorf("origin requests = %d, want 3", origin.RequestCount())
	}

	items = batch.New(cfg).FetchAll(ctx, urls)
	for i, item := range items {
		if item.Err != nil {
			t.Fatalf("cached items[%d].Err = %v", i, item.Err)
		}
	}
	if origin.RequestCount() != 3 {
		t.Errorf("origin requests = %d after cached batch, want 3", origin.RequestCount())
	}
}

// TestRateLimiterSustainedRate checks the spacing lower bound over a
// longer run: 10 sequential waits at 5 rps take at least 1.8s.
func TestRateLimiterSustainedRate(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test skipped in -short mode")
	}

	limiter := ratelimit.New(5)

	start := time.Now()
	var prev time.Time
	for i := 0; i < 10; i++ {
		limiter.Wait()
		now := time.Now()
		if i > 0 {
			if gap := now.Sub(prev); gap < 190*time.Millisecond {
				t.Errorf("gap %d = %v, want >= ~200ms", i, gap)
			}
		}
		prev = now
	}

	if elapsed := time.Since(start); elapsed < 1800*time.Millisecond {
		t.Errorf("10 waits took %v, want >= 1.8s", elapsed)
	}
}
