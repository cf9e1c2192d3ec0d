// Package ratelimit implements client-side request pacing. A Limiter spaces
// consecutive requests a minimum interval apart so that the sustained request
// rate against an origin stays at or below a configured requests-per-second
// target.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for rate limiting.
var (
	fetchThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_throttle_wait_seconds",
		Help:    "Time spent waiting on the rate limiter before dispatch",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	fetchThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_throttled_total",
		Help: "Total number of requests delayed by the rate limiter",
	})
)

// Limiter enforces a minimum spacing between consecutive dispatches.
//
// The pacing model is observe-then-delay: a caller reads the time elapsed
// since the most recently recorded dispatch, pauses for the remainder of the
// interval, then records its own dispatch time. Sequential callers are spaced
// at least one interval apart. Concurrent callers that observe the same
// timestamp may pass together; the limiter bounds sustained rate, not
// instantaneous bursts, and grants no FIFO ordering among waiters.
type Limiter struct {
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

// New creates a Limiter that sustains requestsPerSecond dispatches.
// It panics if requestsPerSecond is not positive: a non-positive rate is a
// programming error, not a runtime condition.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		panic("ratelimit: requests per second must be positive")
	}
	return &Limiter{
		minInterval: time.Duration(float64(time.Second) / requestsPerSecond),
	}
}

// Interval returns the minimum spacing between dispatches.
func (l *Limiter) Interval() time.Duration {
	return l.minInterval
}

// Wait blocks until the interval since the last recorded dispatch has
// elapsed, then records the current time as the new dispatch point.
// The first call on a fresh Limiter returns immediately.
func (l *Limiter) Wait() {
	_ = l.WaitContext(context.Background())
}

// WaitContext behaves like Wait but the pause is interruptible. When ctx is
// cancelled mid-pause it returns the context error without recording a
// dispatch, so an aborted caller does not push back later ones.
func (l *Limiter) WaitContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	if d := l.pending(); d > 0 {
		fetchThrottledTotal.Inc()
		log.Debug().
			Dur("wait", d).
			Msg("Throttling request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	l.record()
	fetchThrottleWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// pending returns how long the caller must pause before dispatching.
// The pause itself happens outside the lock, so near-simultaneous callers
// may observe the same dispatch time and pause for the same remainder.
func (l *Limiter) pending() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last.IsZero() {
		return 0
	}
	return l.minInterval - time.Since(l.last)
}

// record stores the current time as the most recent dispatch.
func (l *Limiter) record() {
	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
}
