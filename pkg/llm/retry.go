package llm

import (
	"context"
	"time"

	"github.com/harunnryd/sapa/pkg/resilience"
)

// RetryConfig controls RetryAdapter. Delays double per attempt up to MaxDelay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool
	Sleep       func(time.Duration)
}

// RateLimitOnly retries only provider rate limits.
func RateLimitOnly(err error) bool {
	return resilience.IsRateLimit(err)
}

// RetryAdapter re-issues Generate calls the config deems retryable.
type RetryAdapter struct {
	inner  LLMAdapter
	policy resilience.RetryPolicy
}

func NewRetryAdapter(inner LLMAdapter, cfg RetryConfig) *RetryAdapter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 4 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = RateLimitOnly
	}
	return &RetryAdapter{inner: inner, policy: resilience.RetryPolicy{
		MaxRetries: cfg.MaxAttempts - 1,
		Retryable:  cfg.IsRetryable,
		Sleep:      cfg.Sleep,
		Delay: func(attempt int) time.Duration {
			d := cfg.BaseDelay << (attempt - 1)
			if d <= 0 || d > cfg.MaxDelay {
				return cfg.MaxDelay
			}
			return d
		},
	}}
}

func (a *RetryAdapter) Name() string { return a.inner.Name() }

func (a *RetryAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	var resp Response
	err := a.policy.Do(ctx, func() error {
		r, err := a.inner.Generate(ctx, input)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}
