package core

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// WithTimeout gives each execution of task its own deadline.
// A non-positive d returns task unchanged.
func WithTimeout[T any](task Task[T], d time.Duration) Task[T] {
	if d <= 0 {
		return task
	}
	return func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return task(ctx)
	}
}

// Permanent marks err as not worth retrying; WithRetry returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// WithRetry re-runs task on error following policy. The last error is
// returned once retries are exhausted; ctx.Err() if ctx ends first.
func WithRetry[T any](task Task[T], policy RetryPolicy) Task[T] {
	if policy.MaxRetries <= 0 {
		return task
	}
	return func(ctx context.Context) (T, error) {
		return backoff.RetryWithData(func() (T, error) {
			return task(ctx)
		}, policy.NewBackOff(ctx))
	}
}

// WithRateLimit makes task wait for a token from limiter before running.
// The limiter is meant to be shared by every task hitting the same API.
func WithRateLimit[T any](task Task[T], limiter *rate.Limiter) Task[T] {
	if limiter == nil {
		return task
	}
	return func(ctx context.Context) (T, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return task(ctx)
	}
}
