// Package fetch implements the single-URL fetch pipeline: validation,
// rate-limit pacing, dispatch over a pooled connection context, response
// classification, and exponential-backoff retry for transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/yomika/yomika/pkg/cache"
	"github.com/yomika/yomika/pkg/urlcheck"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_requests_total",
		Help: "Total successful fetches by final status code",
	}, []string{"status"})

	fetchRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_request_duration_seconds",
		Help:    "Fetch duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_errors_total",
		Help: "Total terminal fetch failures by error kind",
	}, []string{"kind"})

	fetchCacheServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_cache_served_total",
		Help: "Total fetches served from the response cache without dispatch",
	})
)

// Fetch retrieves a single URL over an ad-hoc connection context created
// for this call only and released on every exit path. Callers issuing more
// than one fetch should create a Session and use FetchWithSession so
// connections are pooled.
func Fetch(ctx context.Context, rawURL string, cfg Config) (*Result, error) {
	sess, err := NewSession(cfg)
	if err != nil {
		ferr := &Error{
			Kind:    KindUnexpected,
			URL:     rawURL,
			Message: fmt.Sprintf("unexpected error while loading %s: %v", rawURL, err),
			Err:     err,
		}
		return nil, finishFailure(cfg, ferr)
	}
	defer sess.Close()

	return FetchWithSession(ctx, rawURL, cfg, sess)
}

// FetchWithSession retrieves a single URL over the caller's Session. The
// engine never closes a caller-supplied session.
//
// The pipeline validates the URL, consults the cache, waits on the rate
// limiter, dispatches a GET, and classifies the outcome. Transient failures
// (connection, timeout, rate-limit statuses, other HTTP errors) are retried
// with exponential backoff; permanent ones surface immediately. The
// returned error always carries an *Error in its chain.
func FetchWithSession(ctx context.Context, rawURL string, cfg Config, sess *Session) (*Result, error) {
	start := time.Now()
	defer func() {
		fetchRequestDuration.Observe(time.Since(start).Seconds())
	}()

	// Step 1: validate. Invalid input never reaches the network and is
	// never retried.
	if !urlcheck.IsValid(rawURL) {
		ferr := &Error{
			Kind:    KindInvalidURL,
			URL:     rawURL,
			Message: fmt.Sprintf("invalid url format: %s", rawURL),
		}
		return nil, finishFailure(cfg, ferr)
	}

	var result *Result
	retryErr := retryWithBackoff(ctx, cfg.Retry, func() error {
		res, ferr := attempt(ctx, rawURL, cfg, sess, start)
		if ferr != nil {
			return ferr
		}
		result = res
		return nil
	})

	if retryErr != nil {
		return nil, finishFailure(cfg, terminal(rawURL, retryErr))
	}

	fetchRequestsTotal.WithLabelValues(strconv.Itoa(result.StatusCode)).Inc()
	log.Debug().
		Str("url", rawURL).
		Int("status", result.StatusCode).
		Dur("elapsed", result.Elapsed).
		Msg("Fetch succeeded")

	runOnSuccess(cfg, result)
	return result, nil
}

// attempt runs one pass of the throttle-dispatch-classify sequence. The
// retry policy re-runs it in full, so every attempt consults the cache and
// the rate limiter again.
func attempt(ctx context.Context, rawURL string, cfg Config, sess *Session, start time.Time) (*Result, *Error) {
	// Cache consult: a fresh hit is served without spending rate budget;
	// a stale entry arms a conditional request below.
	var cached *cache.Entry
	var key cache.Key
	if cfg.Cache != nil {
		key = cache.Key{URL: rawURL, Params: cfg.Params}

		entry, err := cfg.Cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("url", rawURL).Msg("Cache get error")
		}
		if entry != nil && !entry.IsExpired() {
			fetchCacheServedTotal.Inc()
			log.Debug().Str("url", rawURL).Msg("Serving fetch from cache")
			return resultFromEntry(rawURL, entry, start), nil
		}
		cached = entry
	}

	// Step 2: throttle before dispatch.
	if cfg.Limiter != nil {
		if err := cfg.Limiter.WaitContext(ctx); err != nil {
			return nil, classifyTransport(rawURL, err)
		}
	}

	// Steps 3-4: headers, then dispatch.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{
			Kind:    KindUnexpected,
			URL:     rawURL,
			Message: fmt.Sprintf("unexpected error while loading %s: %v", rawURL, err),
			Err:     err,
		}
	}

	if len(cfg.Params) > 0 {
		query := req.URL.Query()
		for param, values := range cfg.Params {
			for _, value := range values {
				query.Add(param, value)
			}
		}
		req.URL.RawQuery = query.Encode()
	}

	headers := cfg.Headers
	if headers == nil {
		headers = DefaultHeaders()
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	for _, c := range cfg.Cookies {
		req.AddCookie(c)
	}

	if cached != nil && cache.ShouldRevalidate(cached) {
		cache.AddConditionalHeaders(req, cached)
		log.Debug().
			Str("url", rawURL).
			Str("etag", cached.ETag).
			Msg("Making conditional request")
	}

	resp, err := sess.client(cfg).Do(req)
	if err != nil {
		return nil, classifyTransport(rawURL, err)
	}

	// Step 5: classify.
	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.Body.Close()
		refreshCachedTTL(ctx, cfg, key, resp)
		fetchCacheServedTotal.Inc()
		log.Debug().Str("url", rawURL).Msg("304 Not Modified - serving cached body")
		return resultFromEntry(rawURL, cached, start), nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, &Error{
			Kind:       KindRateLimited,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("rate limit exceeded: %d", resp.StatusCode),
		}
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &Error{
			Kind:       KindHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("http error for %s: %s", rawURL, resp.Status),
		}
	}

	body, err := readBody(resp.Body, cfg.MaxBodyBytes)
	resp.Body.Close()
	if err != nil {
		return nil, classifyTransport(rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if cfg.ExpectedContentType != "" && !strings.Contains(contentType, cfg.ExpectedContentType) {
		return nil, &Error{
			Kind:       KindContentType,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("expected content type %q but got %q", cfg.ExpectedContentType, contentType),
		}
	}

	res := &Result{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		Content:     body,
		Text:        decodeText(body, contentType),
		Headers:     resp.Header.Clone(),
		Elapsed:     time.Since(start),
		ContentType: contentType,
	}

	storeInCache(ctx, cfg, key, res)
	return res, nil
}

// classifyTransport maps a transport-level failure onto the error taxonomy.
func classifyTransport(rawURL string, err error) *Error {
	switch {
	case errors.Is(err, errTooManyRedirects):
		return &Error{
			Kind:    KindTooManyRedirects,
			URL:     rawURL,
			Message: fmt.Sprintf("too many redirects for %s: %v", rawURL, err),
			Err:     err,
		}
	case isTimeout(err):
		return &Error{
			Kind:    KindTimeout,
			URL:     rawURL,
			Message: fmt.Sprintf("timeout error for %s: %v", rawURL, err),
			Err:     err,
		}
	case errors.Is(err, context.Canceled):
		return &Error{
			Kind:    KindUnexpected,
			URL:     rawURL,
			Message: fmt.Sprintf("fetch cancelled for %s: %v", rawURL, err),
			Err:     err,
		}
	default:
		return &Error{
			Kind:    KindConnection,
			URL:     rawURL,
			Message: fmt.Sprintf("connection error for %s: %v", rawURL, err),
			Err:     err,
		}
	}
}

// isTimeout recognizes deadline failures from both the context layer and
// the net layer.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// terminal guarantees the engine's error boundary: whatever leaves the
// retry loop carries a classified *Error. A deadline that fired during a
// backoff pause becomes a Timeout; an explicit cancellation surfaces as
// Unexpected with ErrContextCancelled still visible in the chain.
func terminal(rawURL string, err error) error {
	var ferr *Error
	if errors.As(err, &ferr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindTimeout,
			URL:     rawURL,
			Message: fmt.Sprintf("timeout error for %s: %v", rawURL, err),
			Err:     err,
		}
	}
	return &Error{
		Kind:    KindUnexpected,
		URL:     rawURL,
		Message: fmt.Sprintf("unexpected error while loading %s: %v", rawURL, err),
		Err:     err,
	}
}

// finishFailure records a terminal failure: metrics, log, failure callback.
// It returns the error unchanged for the caller to surface.
func finishFailure(cfg Config, err error) error {
	var ferr *Error
	if !errors.As(err, &ferr) {
		ferr = &Error{Kind: KindUnexpected, Message: err.Error(), Err: err}
	}

	fetchErrorsTotal.WithLabelValues(string(ferr.Kind)).Inc()
	log.Error().
		Str("url", ferr.URL).
		Str("kind", string(ferr.Kind)).
		Int("status", ferr.StatusCode).
		Err(err).
		Msg("Fetch failed")

	runOnFailure(cfg, ferr)
	return err
}

// resultFromEntry materializes a Result from a cached response.
func resultFromEntry(rawURL string, entry *cache.Entry, start time.Time) *Result {
	contentType := entry.Headers.Get("Content-Type")
	return &Result{
		URL:         rawURL,
		StatusCode:  entry.StatusCode,
		Content:     entry.Data,
		Text:        decodeText(entry.Data, contentType),
		Headers:     entry.Headers.Clone(),
		Elapsed:     time.Since(start),
		ContentType: contentType,
	}
}

// storeInCache caches a successful 2xx response when its freshness
// lifetime is positive.
func storeInCache(ctx context.Context, cfg Config, key cache.Key, res *Result) {
	if cfg.Cache == nil || res.StatusCode < 200 || res.StatusCode >= 300 {
		return
	}

	entry := cache.NewEntry(res.StatusCode, res.Headers, res.Content)
	if entry.TTL() <= 0 {
		return
	}

	if err := cfg.Cache.Set(ctx, key, entry); err != nil {
		log.Warn().Err(err).Str("url", res.URL).Msg("Failed to cache response")
		return
	}
	log.Debug().
		Str("url", res.URL).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

// refreshCachedTTL extends a revalidated entry's freshness from a 304
// response's Expires header.
func refreshCachedTTL(ctx context.Context, cfg Config, key cache.Key, resp *http.Response) {
	expiresStr := resp.Header.Get("Expires")
	if expiresStr == "" {
		return
	}

	newExpires, err := http.ParseTime(expiresStr)
	if err != nil {
		return
	}
	if err := cfg.Cache.UpdateTTL(ctx, key, newExpires); err != nil {
		log.Warn().Err(err).Msg("Failed to update cache TTL")
	}
}

// readBody drains a response body, honoring the configured size cap.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	return io.ReadAll(r)
}

// runOnSuccess invokes the success callback. Panics inside the callback
// are recovered and logged so a misbehaving observer cannot corrupt the
// fetch outcome.
func runOnSuccess(cfg Config, res *Result) {
	if cfg.OnSuccess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("url", res.URL).
				Msg("Recovered panic in success callback")
		}
	}()
	cfg.OnSuccess(res)
}

// runOnFailure invokes the failure callback under the same panic sandbox
// as runOnSuccess.
func runOnFailure(cfg Config, ferr *Error) {
	if cfg.OnFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("url", ferr.URL).
				Msg("Recovered panic in failure callback")
		}
	}()
	cfg.OnFailure(ferr)
}
