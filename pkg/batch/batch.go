package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/yomika/yomika/pkg/fetch"
)

// Prometheus metrics for batch operations.
var (
	batchURLsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_batch_urls_total",
		Help: "Total batch items by outcome",
	}, []string{"outcome"}) // "success", "failure"

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_batch_duration_seconds",
		Help:    "Whole-batch duration in seconds",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// progressEvery is how many completed fetches pass between progress log lines.
const progressEvery = 50

// Config holds batch fetcher configuration.
type Config struct {
	// Fetch is the per-URL fetch configuration. All URLs in a batch share
	// its Limiter and Retry settings.
	Fetch fetch.Config

	// MaxConcurrency caps how many fetches run at once.
	// Zero or negative means one goroutine per URL with no cap.
	MaxConcurrency int64
}

// DefaultConfig returns a batch configuration with the conservative fetch
// preset and at most 10 concurrent fetches.
func DefaultConfig() Config {
	return Config{
		Fetch:          fetch.DefaultConfig(),
		MaxConcurrency: 10,
	}
}

// Item is one per-URL outcome. Exactly one of Result and Err is set.
type Item struct {
	URL    string
	Result *fetch.Result
	Err    error
}

// Fetcher runs batches of concurrent fetches.
type Fetcher struct {
	config Config
}

// New creates a batch fetcher.
func New(config Config) *Fetcher {
	return &Fetcher{config: config}
}

// FetchAll retrieves every URL concurrently and returns one Item per input
// URL, in input order regardless of completion order. A failed URL occupies
// its slot with a classified error; it never cancels sibling fetches and
// FetchAll itself never fails.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Item {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	items := make([]Item, len(urls))
	if len(urls) == 0 {
		return items
	}

	log.Info().
		Int("urls", len(urls)).
		Int64("max_concurrency", f.config.MaxConcurrency).
		Msg("Starting batch fetch")

	// One pooled session for the whole batch. The fetches share it; the
	// batch owns it and releases it on return.
	sess, err := fetch.NewSession(f.config.Fetch)
	if err != nil {
		// Session construction only fails on configuration errors, which
		// hit every URL alike.
		for i, target := range urls {
			items[i] = Item{URL: target, Err: &fetch.Error{
				Kind:    fetch.KindUnexpected,
				URL:     target,
				Message: fmt.Sprintf("session setup failed: %v", err),
				Err:     err,
			}}
			batchURLsTotal.WithLabelValues("failure").Inc()
		}
		return items
	}
	defer sess.Close()

	var sem *semaphore.Weighted
	if f.config.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(f.config.MaxConcurrency)
	}

	var mu sync.Mutex
	var done int64

	var wg sync.WaitGroup
	for i, rawURL := range urls {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					items[idx] = Item{URL: target, Err: &fetch.Error{
						Kind:    fetch.KindUnexpected,
						URL:     target,
						Message: fmt.Sprintf("batch cancelled before dispatch: %v", err),
						Err:     err,
					}}
					return
				}
				defer sem.Release(1)
			}

			res, err := fetch.FetchWithSession(ctx, target, f.config.Fetch, sess)
			items[idx] = Item{URL: target, Result: res, Err: err}

			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			batchURLsTotal.WithLabelValues(outcome).Inc()

			mu.Lock()
			done++
			if done%progressEvery == 0 {
				log.Info().
					Int64("fetched", done).
					Int("total", len(urls)).
					Float64("progress_pct", float64(done)/float64(len(urls))*100).
					Msg("Batch progress")
			}
			mu.Unlock()
		}(i, rawURL)
	}
	wg.Wait()

	failures := 0
	for _, item := range items {
		if item.Err != nil {
			failures++
		}
	}

	log.Info().
		Int("urls", len(urls)).
		Int("failures", failures).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return items
}

// FetchAllStrict runs the same collect-all execution as FetchAll and then
// applies the fail-together policy: every fetch still runs to completion,
// but if any URL failed, the first failure by input order is returned as a
// batch error and the results slice is nil. On success the results are in
// input order.
func (f *Fetcher) FetchAllStrict(ctx context.Context, urls []string) ([]*fetch.Result, error) {
	items := f.FetchAll(ctx, urls)

	results := make([]*fetch.Result, len(items))
	for i, item := range items {
		if item.Err != nil {
			return nil, fmt.Errorf("batch fetch failed for %s: %w", item.URL, item.Err)
		}
		results[i] = item.Result
	}
	return results, nil
}
