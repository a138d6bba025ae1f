// Package scheduler runs fire-once callbacks at a wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// NextFireTime returns today's hour:minute in now's location, moved forward
// by exactly 24 hours when that moment is not after now.
func NextFireTime(now time.Time, hour, minute int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !t.After(now) {
		t = t.Add(24 * time.Hour)
	}
	return t
}

// once fires at a single instant; afterwards Next reports the zero time,
// which cron treats as "never again".
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// Task is a scheduled callback.
type Task struct {
	ID cron.EntryID
	At time.Time

	s    *Scheduler
	mu   sync.Mutex
	done bool
}

// Cancel prevents the task from firing. It is a no-op once fired.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()
	t.s.remove(t)
}

// Fired reports whether the task ran or was cancelled.
func (t *Task) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	tasks map[cron.EntryID]*Task
}

type Option func(*Scheduler)

// WithClock overrides the clock used to reject past times.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(log *slog.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	logger := cronLogger{log: log}
	s := &Scheduler{
		cron:  cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		log:   log,
		now:   time.Now,
		tasks: map[cron.EntryID]*Task{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron.Start()
	return s
}

// Once schedules fn to run a single time at at.
func (s *Scheduler) Once(at time.Time, fn func()) (*Task, error) {
	if fn == nil {
		return nil, errors.New("scheduler: nil callback")
	}
	if !at.After(s.now()) {
		return nil, fmt.Errorf("scheduler: %s is not in the future", at.Format(time.RFC3339))
	}
	task := &Task{At: at, s: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.cron.Schedule(once{at: at}, cron.FuncJob(func() {
		task.mu.Lock()
		if task.done {
			task.mu.Unlock()
			return
		}
		task.done = true
		task.mu.Unlock()
		defer s.remove(task)
		fn()
	}))
	s.tasks[task.ID] = task
	s.log.Info("task_scheduled", "task_id", int(task.ID), "at", at.Format(time.RFC3339))
	return task, nil
}

// Pending returns the tasks that have neither fired nor been cancelled.
func (s *Scheduler) Pending() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	delete(s.tasks, t.ID)
	s.mu.Unlock()
	s.cron.Remove(t.ID)
}

// Stop halts the scheduler and waits for running callbacks or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron_"+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
