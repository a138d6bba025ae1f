package llm

import (
	"context"
	"time"

	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/resilience"
)

// CircuitBreakerAdapter refuses calls while the provider keeps rate limiting.
// A refused call fails fast with a RateLimitError.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	a := &CircuitBreakerAdapter{inner: inner, breaker: breaker, obs: metrics.NoopObserver{}}
	breaker.OnStateChange = func(open bool) {
		if open {
			a.record(metrics.EventBreakerOpen)
			return
		}
		a.record(metrics.EventBreakerClose)
	}
	return a
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// SetObserver routes breaker and rate-limit events to obs.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) {
	if obs != nil {
		a.obs = obs
	}
}

func (a *CircuitBreakerAdapter) Generate(ctx context.Context, input Context) (Response, error) {
	if !a.breaker.Allow() {
		a.record(metrics.EventBreakerDenied)
		return Response{}, resilience.RateLimitError{Provider: a.Name(), Message: "circuit open, try again later"}
	}
	resp, err := a.inner.Generate(ctx, input)
	if err != nil {
		if resilience.IsRateLimit(err) {
			a.record(metrics.EventRateLimit)
		}
		a.breaker.OnError(err)
		return Response{}, err
	}
	a.breaker.OnSuccess()
	return resp, nil
}

func (a *CircuitBreakerAdapter) record(name string) {
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{"provider": a.inner.Name(), "component": "llm"},
	})
}
