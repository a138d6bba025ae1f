// Package conversation runs the read, route, invoke and report loop.
package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/sapa/pkg/channels"
	"github.com/harunnryd/sapa/pkg/intent"
	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/metrics"
	"github.com/harunnryd/sapa/pkg/scheduler"
)

// Invoker executes a routed intent; *invoke.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, in intent.Intent) *invoke.Invocation
}

// Journal keeps finished invocations; *store.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, inv *invoke.Invocation) error
}

// Session bundles everything one conversation needs. It is built once by
// the caller and handed to New.
type Session struct {
	Input     channels.Input
	Output    channels.Output
	Router    intent.Router
	Invoker   Invoker
	Scheduler *scheduler.Scheduler
	Clock     func() time.Time
	Logger    *slog.Logger
	Journal   Journal
	Observer  metrics.Observer
}

type Config struct {
	// Greet emits a time-of-day greeting before the first read.
	Greet     bool
	Intro     string
	Farewell  string
	ExitWords []string
}

var DefaultExitWords = []string{"exit", "quit", "bye", "goodbye"}

const (
	DefaultIntro    = "I am your personal assistant. How can I help you today?"
	DefaultFarewell = "Goodbye! Have a great day."

	replyRepeat  = "Could you please repeat that? I didn't catch it."
	replyUnknown = "I'm sorry, I don't know how to do that yet. Can I help with something else?"
)

func (c Config) withDefaults() Config {
	if c.Intro == "" {
		c.Intro = DefaultIntro
	}
	if c.Farewell == "" {
		c.Farewell = DefaultFarewell
	}
	if len(c.ExitWords) == 0 {
		c.ExitWords = DefaultExitWords
	}
	return c
}

// Greeting picks the salutation for the hour of t.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good Morning!"
	case h < 18:
		return "Good Afternoon!"
	default:
		return "Good Evening!"
	}
}
