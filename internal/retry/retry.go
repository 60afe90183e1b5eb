// Package retry implements bounded exponential backoff with jitter for
// provider calls. Only errors the caller's predicate marks retryable are
// retried; everything else fails fast on the first attempt.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config controls a retry loop.
type Config struct {
	// Attempts is the maximum number of calls, including the first.
	Attempts int
	// BaseDelay seeds the exponential schedule: attempt n (0-based) waits
	// BaseDelay*2^n plus random jitter in [0, 1s).
	BaseDelay time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// A nil predicate retries nothing.
	Retryable func(error) bool
	// Sleep overrides the wait primitive; tests inject a recorder here.
	// Nil means a context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, exhausts cfg.Attempts, fails with a
// non-retryable error, or ctx is done during a backoff wait. The returned
// error is always fn's last error except when the wait itself was cut short,
// in which case it is ctx.Err().
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = wait
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d := backoff(cfg.BaseDelay, attempt-1)
			if err := sleep(ctx, d); err != nil {
				return zero, err
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if cfg.Retryable == nil || !cfg.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// backoff computes the delay before re-running attempt+1: base doubled per
// prior attempt, plus up to one second of jitter to spread thundering herds.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return d + jitter
}

// wait blocks for d or until ctx is done, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
