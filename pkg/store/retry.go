// retry.go handles transient SQLite errors for write operations.
//
// The busy_timeout pragma covers SQLITE_BUSY at the connection level, but
// WAL-mode contention between two olens processes sharing one cache can
// still surface SQLITE_LOCKED and short-read errors that resolve on a
// retry.
package store

import (
	"math/rand"
	"strings"
	"time"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 500 * time.Millisecond
)

// withRetry executes fn, retrying transient SQLite errors with
// exponential backoff and jitter.
func withRetry(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransientSQLiteErr(lastErr) {
			return lastErr
		}
		if attempt < retryAttempts {
			delay := retryBaseDelay << uint(attempt)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			time.Sleep(delay + time.Duration(rand.Int63n(int64(retryBaseDelay))))
		}
	}
	return lastErr
}

// isTransientSQLiteErr detects the error texts modernc.org/sqlite emits
// for lock contention and WAL short reads.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
