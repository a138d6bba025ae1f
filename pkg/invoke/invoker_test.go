package invoke

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/logging"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/tools"
)

type stubJob struct {
	jobID     string
	submitErr error
	statuses  []PollResult
	polls     int
	persistFn func(Result) (string, error)
}

func (s *stubJob) Submit(ctx context.Context, args map[string]any) (string, error) {
	return s.jobID, s.submitErr
}

func (s *stubJob) Poll(ctx context.Context, jobID string) (PollResult, error) {
	i := s.polls
	s.polls++
	if i >= len(s.statuses) {
		return PollResult{Status: PollRunning}, nil
	}
	return s.statuses[i], nil
}

type persistingJob struct {
	*stubJob
}

func (p persistingJob) Persist(ctx context.Context, res Result) (string, error) {
	return p.persistFn(res)
}

type harness struct {
	invoker *Invoker
	obs     *metrics.MemoryObserver
	slept   []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(
		tools.Spec{Name: "image", Params: []tools.Param{{Name: "prompt", Type: tools.String, Required: true}}},
		tools.Spec{Name: "weather", Params: []tools.Param{{Name: "city", Type: tools.String, Required: true}}},
		tools.Spec{Name: "unbound"},
	)
	h := &harness{obs: metrics.NewMemoryObserver()}
	h.invoker = New(reg, Options{
		Poll: PollPolicy{Interval: 5 * time.Second, MaxAttempts: 30},
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.slept = append(h.slept, d)
			return ctx.Err()
		},
		Observer: h.obs,
		Logger:   logging.Discard(),
	})
	return h
}

func imageIntent() intent.Intent {
	return intent.Intent{Tool: "image", Args: map[string]any{"prompt": "a red fox"}}
}

func TestNoToolSelectedReturnsNil(t *testing.T) {
	h := newHarness(t)
	if inv := h.invoker.Invoke(context.Background(), intent.Intent{}); inv != nil {
		t.Fatalf("expected nil invocation, got %+v", inv)
	}
}

func TestPollingCompletesAfterNPolls(t *testing.T) {
	h := newHarness(t)
	job := &stubJob{jobID: "p-1", statuses: []PollResult{
		{Status: PollPending},
		{Status: PollRunning},
		{Status: PollCompleted, Result: Result{Text: "done", URL: "https://cdn/x.png"}},
	}}
	if err := h.invoker.Bind("image", job); err != nil {
		t.Fatalf("bind: %v", err)
	}
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Status != StatusCompleted || inv.Result.URL != "https://cdn/x.png" {
		t.Fatalf("unexpected invocation %+v", inv)
	}
	if inv.Polls != 3 || len(h.slept) != 3 {
		t.Fatalf("expected 3 polls and 3 sleeps, got %d/%d", inv.Polls, len(h.slept))
	}
	for _, d := range h.slept {
		if d != 5*time.Second {
			t.Fatalf("expected 5s interval, got %s", d)
		}
	}
	if h.obs.Count(metrics.EventToolPoll) != 3 || h.obs.Count(metrics.EventToolFinished) != 1 {
		t.Fatalf("unexpected events %+v", h.obs.Events())
	}
}

func TestPollingTimesOut(t *testing.T) {
	h := newHarness(t)
	job := &stubJob{jobID: "p-2"}
	_ = h.invoker.Bind("image", job)
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Status != StatusTimedOut {
		t.Fatalf("expected timed_out, got %s", inv.Status)
	}
	var terr *TimeoutError
	if !errors.As(inv.Err, &terr) || terr.Attempts != 30 {
		t.Fatalf("expected TimeoutError after 30 attempts, got %v", inv.Err)
	}
	if job.polls != 30 || len(h.slept) != 30 {
		t.Fatalf("expected exactly 30 polls, got %d", job.polls)
	}
}

func TestPollingProviderFailure(t *testing.T) {
	h := newHarness(t)
	job := &stubJob{jobID: "p-3", statuses: []PollResult{{Status: PollFailed, Message: "nsfw prompt"}}}
	_ = h.invoker.Bind("image", job)
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	var perr *ProviderError
	if inv.Status != StatusFailed || !errors.As(inv.Err, &perr) || perr.Message != "nsfw prompt" {
		t.Fatalf("expected provider failure, got %s %v", inv.Status, inv.Err)
	}
	if job.polls != 1 {
		t.Fatalf("expected polling to stop at FAILED, got %d polls", job.polls)
	}
}

func TestPollingEmptyJobID(t *testing.T) {
	h := newHarness(t)
	_ = h.invoker.Bind("image", &stubJob{})
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Status != StatusFailed || inv.Polls != 0 {
		t.Fatalf("expected immediate failure, got %+v", inv)
	}
}

func TestDownloadFailureKeepsCompletedStatus(t *testing.T) {
	h := newHarness(t)
	job := persistingJob{&stubJob{
		jobID:     "p-4",
		statuses:  []PollResult{{Status: PollCompleted, Result: Result{URL: "https://cdn/y.png"}}},
		persistFn: func(Result) (string, error) { return "", errors.New("HTTP 403") },
	}}
	_ = h.invoker.Bind("image", job)
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Status != StatusCompleted || inv.Err != nil {
		t.Fatalf("expected completed generation, got %s %v", inv.Status, inv.Err)
	}
	var derr *DownloadError
	if inv.Artifact == nil || !errors.As(inv.Artifact.Err, &derr) || derr.URL != "https://cdn/y.png" {
		t.Fatalf("expected download error on artifact, got %+v", inv.Artifact)
	}
}

func TestPersistPanicKeepsCompletedStatus(t *testing.T) {
	h := newHarness(t)
	job := persistingJob{&stubJob{
		jobID:    "p-6",
		statuses: []PollResult{{Status: PollCompleted, Result: Result{URL: "https://cdn/w.png"}}},
		persistFn: func(Result) (string, error) {
			var saved map[string]string
			saved["w.png"] = "img_w.png"
			return "", nil
		},
	}}
	_ = h.invoker.Bind("image", job)
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Status != StatusCompleted || inv.Err != nil {
		t.Fatalf("expected completed generation, got %s %v", inv.Status, inv.Err)
	}
	var derr *DownloadError
	var perr *PanicError
	if inv.Artifact == nil || !errors.As(inv.Artifact.Err, &derr) || derr.URL != "https://cdn/w.png" || !errors.As(inv.Artifact.Err, &perr) {
		t.Fatalf("expected recovered download error on artifact, got %+v", inv.Artifact)
	}
}

func TestDownloadSuccessRecordsPath(t *testing.T) {
	h := newHarness(t)
	job := persistingJob{&stubJob{
		jobID:     "p-5",
		statuses:  []PollResult{{Status: PollCompleted, Result: Result{URL: "https://cdn/z.png"}}},
		persistFn: func(Result) (string, error) { return "img_abc123.png", nil },
	}}
	_ = h.invoker.Bind("image", job)
	inv := h.invoker.Invoke(context.Background(), imageIntent())
	if inv.Artifact == nil || inv.Artifact.Path != "img_abc123.png" || inv.Artifact.Err != nil {
		t.Fatalf("unexpected artifact %+v", inv.Artifact)
	}
}

func TestUnknownToolFails(t *testing.T) {
	h := newHarness(t)
	inv := h.invoker.Invoke(context.Background(), intent.Intent{Tool: "teleport"})
	var unknown *tools.UnknownToolError
	if inv.Status != StatusFailed || !errors.As(inv.Err, &unknown) {
		t.Fatalf("expected unknown tool failure, got %s %v", inv.Status, inv.Err)
	}
}

func TestMissingArgumentFailsBeforeDispatch(t *testing.T) {
	h := newHarness(t)
	called := false
	_ = h.invoker.Bind("weather", SyncFunc(func(ctx context.Context, args map[string]any) (Result, error) {
		called = true
		return Result{}, nil
	}))
	inv := h.invoker.Invoke(context.Background(), intent.Intent{Tool: "weather", Args: map[string]any{}})
	var missing *tools.MissingArgumentError
	if inv.Status != StatusFailed || !errors.As(inv.Err, &missing) || called {
		t.Fatalf("expected missing argument failure without dispatch, got %s %v", inv.Status, inv.Err)
	}
}

func TestUnboundToolFails(t *testing.T) {
	h := newHarness(t)
	inv := h.invoker.Invoke(context.Background(), intent.Intent{Tool: "unbound"})
	var unbound *UnboundToolError
	if !errors.As(inv.Err, &unbound) {
		t.Fatalf("expected unbound error, got %v", inv.Err)
	}
}

func TestSyncToolErrorAndPanic(t *testing.T) {
	h := newHarness(t)
	_ = h.invoker.Bind("weather", SyncFunc(func(ctx context.Context, args map[string]any) (Result, error) {
		if args["city"] == "Atlantis" {
			panic("boom")
		}
		return Result{}, &NetworkError{Service: "weather service", Err: errors.New("dial tcp: no route")}
	}))
	inv := h.invoker.Invoke(context.Background(), intent.Intent{Tool: "weather", Args: map[string]any{"city": "Pune"}})
	if inv.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", inv.Status)
	}
	if got := Describe(inv.Err); got != "I'm having trouble connecting to the weather service. Please check your internet connection." {
		t.Fatalf("unexpected description %q", got)
	}
	inv = h.invoker.Invoke(context.Background(), intent.Intent{Tool: "weather", Args: map[string]any{"city": "Atlantis"}})
	var perr *PanicError
	if inv.Status != StatusFailed || !errors.As(inv.Err, &perr) {
		t.Fatalf("expected panic converted to failure, got %s %v", inv.Status, inv.Err)
	}
}

func TestCancelledContextStopsPolling(t *testing.T) {
	h := newHarness(t)
	_ = h.invoker.Bind("image", &stubJob{jobID: "p-6"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := h.invoker.Invoke(ctx, imageIntent())
	if inv.Status != StatusFailed || !errors.Is(inv.Err, context.Canceled) {
		t.Fatalf("expected cancellation failure, got %s %v", inv.Status, inv.Err)
	}
}

func TestBindRejectsUnknownAndWrongType(t *testing.T) {
	h := newHarness(t)
	if err := h.invoker.Bind("teleport", &stubJob{}); err == nil {
		t.Fatalf("expected error for unregistered tool")
	}
	if err := h.invoker.Bind("weather", 42); err == nil {
		t.Fatalf("expected error for non-tool handler")
	}
}
