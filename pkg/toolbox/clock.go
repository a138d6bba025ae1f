package toolbox

import (
	"context"
	"time"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

// Clock tells the current time or date.
type Clock struct {
	now func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Spec() tools.Spec {
	return tools.Spec{
		Name:        "clock",
		Description: "Tells the current time or today's date.",
		Params: []tools.Param{
			{Name: "format", Type: tools.String, Description: "time or date"},
		},
	}
}

func (c *Clock) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	now := c.now()
	if cast.ToString(args["format"]) == "date" {
		return invoke.Result{Text: "Today is " + now.Format("Monday, January 02, 2006")}, nil
	}
	return invoke.Result{Text: "The current time is " + now.Format("03:04 PM")}, nil
}

// Greeting answers hellos.
type Greeting struct{}

func (Greeting) Spec() tools.Spec {
	return tools.Spec{Name: "greeting", Description: "Responds to a hello."}
}

func (Greeting) Call(context.Context, map[string]any) (invoke.Result, error) {
	return invoke.Result{Text: "Hello there! How can I assist you?"}, nil
}
