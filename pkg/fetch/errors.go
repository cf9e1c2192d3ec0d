package fetch

import (
	"errors"
	"fmt"
)

// Common errors returned by the engine.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRetryBudgetExceeded is returned when the cumulative retry time
	// budget runs out before the attempt limit is reached.
	ErrRetryBudgetExceeded = errors.New("retry time budget exceeded")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry backoff pause.
	ErrContextCancelled = errors.New("context cancelled")
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindInvalidURL marks input that failed validation. Never retried and
	// never reaches the network.
	KindInvalidURL Kind = "invalid_url"

	// KindConnection marks transport-level failures: refused connections,
	// DNS errors, resets mid-transfer.
	KindConnection Kind = "connection"

	// KindTimeout marks attempts that exceeded their deadline.
	KindTimeout Kind = "timeout"

	// KindTooManyRedirects marks redirect chains past the follow limit.
	KindTooManyRedirects Kind = "too_many_redirects"

	// KindHTTPStatus marks HTTP error responses (4xx/5xx) other than the
	// rate-limit statuses.
	KindHTTPStatus Kind = "http_status"

	// KindRateLimited marks 429 and 503 responses.
	KindRateLimited Kind = "rate_limited"

	// KindContentType marks responses whose Content-Type did not contain
	// the expected value. Permanent; the origin will not change its mind.
	KindContentType Kind = "content_type"

	// KindUnexpected wraps any failure the classifier did not recognize.
	KindUnexpected Kind = "unexpected"
)

// Error is a classified fetch failure carrying the failed URL and, where
// one exists, the HTTP status code.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry policy may re-attempt after this
// failure. Connection, timeout, rate-limit, and HTTP status failures are
// transient; everything else is permanent.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnection, KindTimeout, KindHTTPStatus, KindRateLimited:
		return true
	default:
		return false
	}
}

// shouldRetry determines if an error may be retried based on its
// classification. Unclassified errors are never retried.
func shouldRetry(err error) bool {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Retryable()
	}
	return false
}

// kindOf extracts the error kind for logging and metric labels.
func kindOf(err error) Kind {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind
	}
	return KindUnexpected
}
