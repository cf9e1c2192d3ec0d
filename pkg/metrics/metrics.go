// Package metrics provides the centralized Prometheus metrics registry for
// the fetch engine. All metrics are defined in their respective packages
// (fetch, ratelimit, batch, cache) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the fetch engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - fetch_throttle_wait_seconds (Histogram): Time spent waiting on the rate limiter
//   - fetch_throttled_total (Counter): Requests delayed by the rate limiter
//
// Cache Metrics (pkg/cache):
//   - fetch_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - fetch_cache_misses_total (Counter): Cache misses
//   - fetch_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - fetch_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/fetch):
//   - fetch_requests_total{status} (Counter): Successful fetches by final HTTP status
//   - fetch_request_duration_seconds (Histogram): Fetch duration including retries
//   - fetch_errors_total{kind} (Counter): Terminal failures by error kind
//   - fetch_cache_served_total (Counter): Fetches served from cache without dispatch
//
// Retry Metrics (pkg/fetch):
//   - fetch_retries_total{kind} (Counter): Retry attempts by error kind
//   - fetch_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - fetch_retry_exhausted_total{kind} (Counter): Fetches that exhausted their retry budget
//
// Batch Metrics (pkg/batch):
//   - fetch_batch_urls_total{outcome} (Counter): Batch items by outcome (success, failure)
//   - fetch_batch_duration_seconds (Histogram): Whole-batch duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(fetch_cache_hits_total[5m])) /
//   (sum(rate(fetch_cache_hits_total[5m])) + sum(rate(fetch_cache_misses_total[5m])))
//
//   # Terminal Error Rate by Kind
//   rate(fetch_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(fetch_request_duration_seconds_bucket[5m]))
//
//   # Share of Requests Throttled
//   rate(fetch_throttled_total[5m]) / rate(fetch_requests_total[5m])
