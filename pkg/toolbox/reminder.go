package toolbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/channels"
	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/redact"
	"github.com/harunnryd/sapa/pkg/scheduler"
	"github.com/harunnryd/sapa/pkg/tools"
)

// Reminder schedules a one-shot message on notify.
type Reminder struct {
	sched  *scheduler.Scheduler
	notify channels.Output
	now    func() time.Time
	obs    metrics.Observer
	log    *slog.Logger
}

func NewReminder(sched *scheduler.Scheduler, notify channels.Output, now func() time.Time, obs metrics.Observer, log *slog.Logger) *Reminder {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reminder{sched: sched, notify: notify, now: now, obs: metrics.OrNoop(obs), log: log}
}

func (r *Reminder) Spec() tools.Spec {
	return tools.Spec{
		Name:        "reminder",
		Description: "Reminds the user of a task at a time of day (24-hour clock).",
		Params: []tools.Param{
			{Name: "hour", Type: tools.Integer, Required: true, Description: "Hour, 0-23"},
			{Name: "minute", Type: tools.Integer, Required: true, Description: "Minute, 0-59"},
			{Name: "task", Type: tools.String, Required: true, Description: "What to remind about"},
		},
	}
}

func (r *Reminder) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	hour, err := cast.ToIntE(args["hour"])
	if err != nil || hour < 0 || hour > 23 {
		return invoke.Result{}, &intent.ArgumentParseError{Param: "hour", Input: cast.ToString(args["hour"]), Reason: "expected 0-23"}
	}
	minute, err := cast.ToIntE(args["minute"])
	if err != nil || minute < 0 || minute > 59 {
		return invoke.Result{}, &intent.ArgumentParseError{Param: "minute", Input: cast.ToString(args["minute"]), Reason: "expected 0-59"}
	}
	task := strings.TrimSpace(cast.ToString(args["task"]))
	at := scheduler.NextFireTime(r.now(), hour, minute)
	message := reminderMessage(task)
	scheduled, err := r.sched.Once(at, func() {
		r.obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventReminderFired, Time: time.Now()})
		if err := r.notify.Write(context.Background(), message); err != nil {
			r.log.Warn("reminder_notify_failed", "error", err)
		}
	})
	if err != nil {
		return invoke.Result{}, err
	}
	r.log.Info("reminder_scheduled", "task", redact.Text(task), "at", at.Format(time.RFC3339), "task_id", int(scheduled.ID))
	return invoke.Result{
		Text: fmt.Sprintf("Okay, I will remind you to %s at %s.", task, at.Format("03:04 PM")),
		Data: map[string]any{"at": at, "task": task},
	}, nil
}

func reminderMessage(task string) string {
	return fmt.Sprintf("Reminder: It's time to %s!", task)
}
