package remote

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil", nil, false},
		{"unreachable", fmt.Errorf("%w: dial refused", ErrUnavailable), true},
		{"server 503", &serverError{status: 503, msg: "overloaded"}, true},
		{"wrapped server error", fmt.Errorf("fetch: %w", &serverError{status: 500}), true},
		{"conflict is permanent", fmt.Errorf("%w: taken", ErrConflict), false},
		{"generic error", errors.New("bad request"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransient(tc.err); got != tc.expect {
				t.Fatalf("isTransient(%v) = %v, want %v", tc.err, got, tc.expect)
			}
		})
	}
}

func TestRetryOp_StopsOnPermanentError(t *testing.T) {
	cfg := retryConfig{maxRetries: 5, baseDelay: time.Millisecond, maxDelay: time.Millisecond}
	calls := 0
	err := retryOp(cfg, func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d, err = %v; want 1 call and the error", calls, err)
	}
}

func TestRetryOp_ExhaustsRetries(t *testing.T) {
	cfg := retryConfig{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: time.Millisecond}
	calls := 0
	err := retryOp(cfg, func() error {
		calls++
		return &serverError{status: 500}
	})
	if err == nil {
		t.Fatal("want the last error after exhausting retries")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	cfg := retryConfig{maxRetries: 10, baseDelay: 10 * time.Millisecond, maxDelay: 50 * time.Millisecond}
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(cfg, attempt)
		if d < 0 || d > cfg.maxDelay+cfg.baseDelay {
			t.Fatalf("attempt %d: delay %v outside [0, max+jitter]", attempt, d)
		}
	}
}
