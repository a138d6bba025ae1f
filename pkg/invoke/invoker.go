// Package invoke runs tools selected by the router and tracks each run as
// an Invocation, polling long-running jobs until they finish.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/redact"
	"github.com/harunnryd/sapa/pkg/tools"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 30
)

// SyncTool completes in a single call.
type SyncTool interface {
	Call(ctx context.Context, args map[string]any) (Result, error)
}

// SyncFunc adapts a function to SyncTool.
type SyncFunc func(ctx context.Context, args map[string]any) (Result, error)

func (f SyncFunc) Call(ctx context.Context, args map[string]any) (Result, error) {
	return f(ctx, args)
}

type PollStatus string

const (
	PollPending   PollStatus = "PENDING"
	PollRunning   PollStatus = "IN_PROGRESS"
	PollCompleted PollStatus = "COMPLETED"
	PollFailed    PollStatus = "FAILED"
)

type PollResult struct {
	Status  PollStatus
	Result  Result
	Message string
}

// PollingTool submits a job and reports its progress on request.
type PollingTool interface {
	Submit(ctx context.Context, args map[string]any) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// Persister stores a completed result locally and returns where.
type Persister interface {
	Persist(ctx context.Context, res Result) (path string, err error)
}

// PollPolicy bounds the polling of one tool.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// PolicyProvider lets a PollingTool override the invoker defaults.
type PolicyProvider interface {
	PollPolicy() PollPolicy
}

// Catalog is the registry view the invoker needs.
type Catalog interface {
	Lookup(name string) (tools.Spec, error)
	Validate(name string, args map[string]any) error
}

type Options struct {
	Poll     PollPolicy
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
	NewID    func() string
	Observer metrics.Observer
	Logger   *slog.Logger
}

type Invoker struct {
	catalog Catalog
	opts    Options
	log     *slog.Logger
	obs     metrics.Observer

	mu       sync.RWMutex
	handlers map[string]any
}

func New(catalog Catalog, opts Options) *Invoker {
	if opts.Poll.Interval <= 0 {
		opts.Poll.Interval = DefaultPollInterval
	}
	if opts.Poll.MaxAttempts <= 0 {
		opts.Poll.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{
		catalog:  catalog,
		opts:     opts,
		log:      log,
		obs:      metrics.OrNoop(opts.Observer),
		handlers: map[string]any{},
	}
}

// Bind attaches a SyncTool or PollingTool to a registered tool name.
func (v *Invoker) Bind(name string, handler any) error {
	if _, err := v.catalog.Lookup(name); err != nil {
		return err
	}
	switch handler.(type) {
	case SyncTool, PollingTool:
	default:
		return fmt.Errorf("invoke: %s: handler %T is neither SyncTool nor PollingTool", name, handler)
	}
	v.mu.Lock()
	v.handlers[name] = handler
	v.mu.Unlock()
	return nil
}

func (v *Invoker) handler(name string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.handlers[name]
	return h, ok
}

// Invoke runs the selected tool to a terminal status. It returns nil when
// no tool is selected and never returns an error: failures are recorded on
// the Invocation.
func (v *Invoker) Invoke(ctx context.Context, in intent.Intent) *Invocation {
	if !in.Selected() {
		return nil
	}
	inv := &Invocation{
		ID:        v.opts.NewID(),
		Tool:      in.Tool,
		Args:      copyArgs(in.Args),
		Status:    StatusPending,
		StartedAt: v.opts.Now(),
	}
	v.record(metrics.EventToolStarted, inv, 0, nil)

	if _, err := v.catalog.Lookup(inv.Tool); err != nil {
		return v.finish(inv, StatusFailed, err)
	}
	if err := v.catalog.Validate(inv.Tool, inv.Args); err != nil {
		return v.finish(inv, StatusFailed, err)
	}
	h, ok := v.handler(inv.Tool)
	if !ok {
		return v.finish(inv, StatusFailed, &UnboundToolError{Name: inv.Tool})
	}
	if err := inv.Transition(StatusRunning); err != nil {
		return v.finish(inv, StatusFailed, err)
	}

	res, status, err := v.dispatch(ctx, inv, h)
	if status != StatusCompleted {
		return v.finish(inv, status, err)
	}
	inv.Result = res
	if p, ok := h.(Persister); ok {
		inv.Artifact = v.persist(ctx, inv, p, res)
	}
	return v.finish(inv, StatusCompleted, nil)
}

func (v *Invoker) dispatch(ctx context.Context, inv *Invocation, h any) (res Result, status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("tool_panic", "tool", inv.Tool, "panic", r)
			res, status, err = Result{}, StatusFailed, &PanicError{Value: r}
		}
	}()
	switch t := h.(type) {
	case SyncTool:
		res, err := t.Call(ctx, inv.Args)
		if err != nil {
			return Result{}, StatusFailed, err
		}
		return res, StatusCompleted, nil
	case PollingTool:
		return v.poll(ctx, inv, t)
	}
	return Result{}, StatusFailed, &UnboundToolError{Name: inv.Tool}
}

func (v *Invoker) poll(ctx context.Context, inv *Invocation, t PollingTool) (Result, Status, error) {
	policy := v.opts.Poll
	if pp, ok := t.(PolicyProvider); ok {
		if p := pp.PollPolicy(); p.Interval > 0 && p.MaxAttempts > 0 {
			policy = p
		}
	}
	jobID, err := t.Submit(ctx, inv.Args)
	if err != nil {
		return Result{}, StatusFailed, err
	}
	if strings.TrimSpace(jobID) == "" {
		return Result{}, StatusFailed, &ProviderError{Message: "no job id returned"}
	}
	v.log.Info("tool_job_submitted", "tool", inv.Tool, "invocation_id", inv.ID, "job_id", jobID)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := v.opts.Sleep(ctx, policy.Interval); err != nil {
			return Result{}, StatusFailed, err
		}
		inv.Polls = attempt
		v.record(metrics.EventToolPoll, inv, float64(attempt), nil)
		pr, err := t.Poll(ctx, jobID)
		if err != nil {
			return Result{}, StatusFailed, err
		}
		switch pr.Status {
		case PollCompleted:
			return pr.Result, StatusCompleted, nil
		case PollFailed:
			return Result{}, StatusFailed, &ProviderError{Message: pr.Message}
		}
	}
	return Result{}, StatusTimedOut, &TimeoutError{Attempts: policy.MaxAttempts, Interval: policy.Interval}
}

func (v *Invoker) persist(ctx context.Context, inv *Invocation, p Persister, res Result) (art *Artifact) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("tool_artifact_panic", "tool", inv.Tool, "invocation_id", inv.ID, "panic", r)
			v.record(metrics.EventToolArtifact, inv, 0, map[string]string{"outcome": "failed"})
			art = &Artifact{Err: &DownloadError{URL: res.URL, Err: &PanicError{Value: r}}}
		}
	}()
	path, err := p.Persist(ctx, res)
	if err != nil {
		var dl *DownloadError
		if !errors.As(err, &dl) {
			err = &DownloadError{URL: res.URL, Err: err}
		}
		v.log.Warn("tool_artifact_failed", "tool", inv.Tool, "invocation_id", inv.ID, "error", redact.Secrets(err.Error()))
		v.record(metrics.EventToolArtifact, inv, 0, map[string]string{"outcome": "failed"})
		return &Artifact{Err: err}
	}
	v.record(metrics.EventToolArtifact, inv, 0, map[string]string{"outcome": "saved"})
	return &Artifact{Path: path}
}

func (v *Invoker) finish(inv *Invocation, status Status, err error) *Invocation {
	if terr := inv.Transition(status); terr != nil {
		// pending can only fail; anything else is a programming error
		inv.Status = StatusFailed
		if err == nil {
			err = terr
		}
	}
	inv.Err = err
	inv.FinishedAt = v.opts.Now()
	tags := map[string]string{"status": string(inv.Status)}
	if err != nil {
		tags["reason"] = string(errorsx.Reason(err))
	}
	v.record(metrics.EventToolFinished, inv, inv.Duration().Seconds(), tags)
	if err != nil {
		v.log.Warn("tool_invocation_failed",
			"tool", inv.Tool,
			"invocation_id", inv.ID,
			"status", inv.Status,
			"reason", errorsx.Reason(err),
			"polls", inv.Polls,
			"error", redact.Secrets(err.Error()),
		)
	} else {
		v.log.Info("tool_invocation_completed",
			"tool", inv.Tool,
			"invocation_id", inv.ID,
			"polls", inv.Polls,
			"duration_ms", inv.Duration().Milliseconds(),
		)
	}
	return inv
}

func (v *Invoker) record(name string, inv *Invocation, value float64, extra map[string]string) {
	tags := map[string]string{"tool": inv.Tool}
	for k, val := range extra {
		tags[k] = val
	}
	v.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   v.opts.Now(),
		Value:  value,
		Tags:   tags,
		Fields: map[string]any{"invocation_id": inv.ID},
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func copyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
