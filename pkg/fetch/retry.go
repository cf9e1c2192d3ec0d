package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_retry_exhausted_total",
		Help: "Total number of times retries were given up by error kind",
	}, []string{"kind"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// MaxElapsed bounds the cumulative wall-clock time spent across all
	// attempts and backoff pauses. Zero means no time bound.
	MaxElapsed time.Duration
}

// DefaultRetryConfig returns the default retry configuration: up to three
// attempts within a 90 second budget, whichever bound triggers first.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		MaxElapsed:        90 * time.Second,
	}
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// It respects context cancellation and adds jitter to prevent thundering herd.
// Non-retryable errors are returned as-is after the first failure; exhausting
// either the attempt count or the time budget wraps the last error so both
// the sentinel and the classified error stay visible to errors.Is/As.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	start := time.Now()

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			// Permanent failure - return immediately
			return lastErr
		}

		// If this was the last attempt, don't wait
		if attempt >= config.MaxAttempts {
			break
		}

		// The time budget covers attempts and pauses together
		if config.MaxElapsed > 0 && time.Since(start) >= config.MaxElapsed {
			fetchRetryExhaustedTotal.WithLabelValues(string(kindOf(lastErr))).Inc()
			log.Warn().
				Str("kind", string(kindOf(lastErr))).
				Dur("elapsed", time.Since(start)).
				Msg("Retry time budget exceeded")
			return fmt.Errorf("%w after %s: %w",
				ErrRetryBudgetExceeded, time.Since(start).Round(time.Millisecond), lastErr)
		}

		kind := string(kindOf(lastErr))
		fetchRetriesTotal.WithLabelValues(kind).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		// Never sleep past the remaining budget
		if config.MaxElapsed > 0 {
			if remaining := config.MaxElapsed - time.Since(start); jitter > remaining {
				jitter = remaining
			}
		}
		fetchRetryBackoffSeconds.WithLabelValues(kind).Observe(jitter.Seconds())

		log.Debug().
			Str("kind", kind).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		// Wait with context cancellation support
		select {
		case <-ctx.Done():
			log.Warn().
				Str("kind", kind).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
			// Continue to next attempt
		}

		// Calculate next backoff (exponential)
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	// All retries exhausted
	fetchRetryExhaustedTotal.WithLabelValues(string(kindOf(lastErr))).Inc()
	log.Warn().
		Str("kind", string(kindOf(lastErr))).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
