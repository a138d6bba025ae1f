package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var ErrDrainTimeout = errors.New("drain timeout")

type LifecycleRunner struct {
	state    int32
	service  Service
	cancel   context.CancelFunc
	mu       sync.Mutex
	onceStop sync.Once
	hooks    Hooks
	drainers []Drainer
	stopErr  error
	timeout  time.Duration
}

// NewLifecycleRunner runs service, then drains each drainer in order within
// timeout overall.
func NewLifecycleRunner(service Service, hooks Hooks, timeout time.Duration, drainers ...Drainer) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		state:    int32(StateNew),
		service:  service,
		hooks:    hooks,
		drainers: drainers,
		timeout:  timeout,
	}
}

// Run blocks until the service returns or ctx is cancelled, then drains.
// The service error takes precedence over a drain error.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return errors.New("invalid state transition")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.setState(StateRunning)
	var runErr error
	if r.service != nil {
		runErr = r.service(ctx)
	} else {
		<-ctx.Done()
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	stopErr := r.stop()
	if runErr != nil {
		return runErr
	}
	return stopErr
}

// Stop cancels the service and drains.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if len(r.drainers) > 0 {
			done := make(chan error, 1)
			go func() {
				var errs []error
				for _, d := range r.drainers {
					if err := d.Drain(); err != nil {
						errs = append(errs, err)
					}
				}
				done <- errors.Join(errs...)
			}()
			select {
			case err := <-done:
				if err != nil {
					r.stopErr = fmt.Errorf("drain: %w", err)
				}
			case <-time.After(r.timeout):
				r.stopErr = ErrDrainTimeout
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
