package invoke

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed, StatusTimedOut},
}

// Result is what a tool hands back on success.
type Result struct {
	Text string
	// URL points at a remote product (generated image) when there is one.
	URL  string
	Data map[string]any
}

// Artifact records the local persistence step of a result, separately from
// the tool outcome itself.
type Artifact struct {
	Path string
	Err  error
}

// Invocation is one execution of a tool, from dispatch to terminal status.
type Invocation struct {
	ID         string
	Tool       string
	Args       map[string]any
	Status     Status
	Result     Result
	Err        error
	Artifact   *Artifact
	Polls      int
	StartedAt  time.Time
	FinishedAt time.Time
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid invocation transition %s -> %s", e.From, e.To)
}

// Transition moves the invocation forward. Invalid moves leave it unchanged.
func (i *Invocation) Transition(to Status) error {
	for _, allowed := range validTransitions[i.Status] {
		if allowed == to {
			i.Status = to
			return nil
		}
	}
	return &InvalidTransitionError{From: i.Status, To: to}
}

func (i *Invocation) Duration() time.Duration {
	if i.FinishedAt.IsZero() {
		return 0
	}
	return i.FinishedAt.Sub(i.StartedAt)
}
