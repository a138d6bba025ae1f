package intent

import (
	"context"
	"strings"
)

// ChainRouter consults routers in order. The first router that selects a
// tool or fails decides the outcome.
type ChainRouter struct {
	routers []Router
}

func NewChainRouter(routers ...Router) *ChainRouter {
	var list []Router
	for _, r := range routers {
		if r != nil {
			list = append(list, r)
		}
	}
	return &ChainRouter{routers: list}
}

func (c *ChainRouter) Route(ctx context.Context, utterance string) (Intent, error) {
	for _, r := range c.routers {
		in, err := r.Route(ctx, utterance)
		if err != nil || in.Selected() {
			return in, err
		}
	}
	return Intent{}, nil
}

// FixedRouter sends every non-empty utterance to one tool as a single argument.
type FixedRouter struct {
	Tool  string
	Param string
}

func (f FixedRouter) Route(ctx context.Context, utterance string) (Intent, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Intent{}, nil
	}
	return Intent{Tool: f.Tool, Args: map[string]any{f.Param: text}, Trigger: "*"}, nil
}
