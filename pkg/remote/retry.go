// retry.go provides backoff for transient fetch failures.
//
// Only the idempotent Fetch path uses this: retrying a take or release
// after an ambiguous failure could perform the action twice under a
// different race than the user approved. Transient here means the
// transport failed or the server answered 5xx/429.
package remote

import (
	"errors"
	"math/rand"
	"time"
)

// retryConfig controls retry behavior for transient fetch errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  100 * time.Millisecond,
	maxDelay:   2 * time.Second,
}

// isTransient reports whether the error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *serverError
	return errors.As(err, &se)
}

// retryOp executes fn with exponential backoff + jitter for transient
// errors. A non-transient error returns immediately.
func retryOp(cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			time.Sleep(backoffDelay(cfg, attempt))
		}
	}
	return lastErr
}

// backoffDelay computes delay = baseDelay * 2^attempt, capped at maxDelay,
// plus random jitter in [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
