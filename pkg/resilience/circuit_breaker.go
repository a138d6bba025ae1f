package resilience

import (
	"errors"
	"sync"
	"time"
)

// RateLimitError is a provider's "slow down" answer (HTTP 429 or equivalent).
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "rate limit"
	}
	return e.Provider + ": " + msg
}

func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// CircuitBreaker stops calls to a provider for a cooldown once threshold
// consecutive rate limits have been seen. Other failures do not count.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	// OnStateChange, when set, is called outside the lock after the breaker
	// opens or closes.
	OnStateChange func(open bool)

	mu        sync.Mutex
	strikes   int
	openUntil time.Time
	open      bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. An expired cooldown closes the
// breaker but keeps the strike count until the next success.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	allowed := !c.now().Before(c.openUntil)
	changed := allowed && c.open
	if changed {
		c.open = false
	}
	c.mu.Unlock()
	if changed {
		c.notify(false)
	}
	return allowed
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.strikes = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if !IsRateLimit(err) {
		return
	}
	c.mu.Lock()
	c.strikes++
	opened := false
	if c.strikes >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
		opened = !c.open
		c.open = true
	}
	c.mu.Unlock()
	if opened {
		c.notify(true)
	}
}

func (c *CircuitBreaker) notify(open bool) {
	if c.OnStateChange != nil {
		c.OnStateChange(open)
	}
}
