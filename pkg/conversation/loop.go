package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/redact"
)

type Loop struct {
	s    Session
	cfg  Config
	exit map[string]bool
	obs  metrics.Observer
	log  *slog.Logger
}

func New(s Session, cfg Config) (*Loop, error) {
	if s.Input == nil || s.Output == nil || s.Router == nil || s.Invoker == nil {
		return nil, errors.New("conversation: session needs input, output, router and invoker")
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	exit := make(map[string]bool, len(cfg.ExitWords))
	for _, w := range cfg.ExitWords {
		exit[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return &Loop{s: s, cfg: cfg, exit: exit, obs: metrics.OrNoop(s.Observer), log: s.Logger}, nil
}

// Run converses until an exit word, end of input, an input fault or ctx
// cancellation. Only input faults are returned as errors.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.Greet {
		if err := l.say(ctx, Greeting(l.s.Clock())+" "+l.cfg.Intro); err != nil {
			return err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			l.log.Info("conversation_cancelled")
			return err
		}
		utterance, err := l.s.Input.Read(ctx)
		if errors.Is(err, io.EOF) {
			l.log.Info("conversation_input_ended")
			return l.farewell(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Error("conversation_input_failed", "reason", errorsx.Reason(err), "error", err)
			_ = l.say(ctx, fmt.Sprintf("I can't read your input anymore: %v", err))
			return err
		}
		if l.isExit(utterance) {
			l.log.Info("conversation_exit_requested")
			return l.farewell(ctx)
		}
		if err := l.say(ctx, l.Respond(ctx, utterance)); err != nil {
			l.log.Warn("conversation_output_failed", "error", err)
		}
	}
}

// Respond produces the single report for one utterance.
func (l *Loop) Respond(ctx context.Context, utterance string) string {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		l.record(metrics.EventUtteranceEmpty, nil)
		return replyRepeat
	}
	l.log.Info("utterance_received", "utterance", redact.Text(utterance))

	in, err := l.s.Router.Route(ctx, utterance)
	if err != nil {
		l.record(metrics.EventRouteError, map[string]string{"tool": in.Tool, "reason": string(errorsx.Reason(err))})
		l.log.Warn("route_failed", "tool", in.Tool, "reason", errorsx.Reason(err), "error", redact.Secrets(err.Error()))
		if in.Selected() {
			return failure(in.Tool, err)
		}
		return "Sorry, I couldn't work out what to do: " + invoke.Describe(err)
	}
	if !in.Selected() {
		l.record(metrics.EventRouteMiss, nil)
		l.log.Info("route_miss")
		return replyUnknown
	}

	inv := l.s.Invoker.Invoke(ctx, in)
	if inv == nil {
		return replyUnknown
	}
	if l.s.Journal != nil {
		if err := l.s.Journal.Record(ctx, inv); err != nil {
			l.log.Warn("journal_record_failed", "invocation_id", inv.ID, "error", err)
		}
	}
	return Report(inv)
}

// Report renders a terminal invocation as user-facing text.
func Report(inv *invoke.Invocation) string {
	if inv.Status != invoke.StatusCompleted {
		err := inv.Err
		if err == nil {
			err = fmt.Errorf("ended as %s", inv.Status)
		}
		return failure(inv.Tool, err)
	}
	text := strings.TrimSpace(inv.Result.Text)
	if text == "" {
		text = "Done."
	}
	if a := inv.Artifact; a != nil {
		if a.Err != nil {
			text += "\nI couldn't save the file: " + invoke.Describe(a.Err)
		} else if a.Path != "" {
			text += "\nSaved to " + a.Path + "."
		}
	}
	return text
}

func failure(tool string, err error) string {
	return fmt.Sprintf("Sorry, %s failed: %s", tool, invoke.Describe(err))
}

// isExit reports whether any word of the utterance is an exit word.
func (l *Loop) isExit(utterance string) bool {
	words := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for _, w := range words {
		if l.exit[w] {
			return true
		}
	}
	return false
}

func (l *Loop) farewell(ctx context.Context) error {
	if l.s.Scheduler != nil {
		if n := len(l.s.Scheduler.Pending()); n > 0 {
			l.log.Info("reminders_pending_at_exit", "count", n)
		}
	}
	return l.say(ctx, l.cfg.Farewell)
}

func (l *Loop) say(ctx context.Context, text string) error {
	return l.s.Output.Write(ctx, text)
}

func (l *Loop) record(name string, tags map[string]string) {
	l.obs.RecordEvent(metrics.MetricsEvent{Name: name, Time: l.s.Clock(), Value: 1, Tags: tags})
}
