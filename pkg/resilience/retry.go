package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient failures of side channels
// (notifications, model calls). Tool invocations are never retried.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	// Retryable filters errors; nil retries every error.
	Retryable func(error) bool
	// Delay overrides the linear Backoff schedule. attempt starts at 1.
	Delay func(attempt int) time.Duration
	Sleep func(time.Duration)
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do runs fn until it succeeds, returns a non-retryable error, ctx is done
// or retries are exhausted. The last error from fn is returned.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		if err == nil {
			return nil
		}
		if i == r.MaxRetries || (r.Retryable != nil && !r.Retryable(err)) {
			return err
		}
		sleep(r.delay(i + 1))
	}
	return err
}

func (r RetryPolicy) delay(attempt int) time.Duration {
	if r.Delay != nil {
		return r.Delay(attempt)
	}
	return r.Backoff * time.Duration(attempt)
}
