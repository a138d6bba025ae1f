package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/sapa/pkg/llm"
)

// LLMAdapter replays scripted responses in order; the last one repeats.
type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls []llm.Context
}

type LLMConfig struct {
	ResponseText string
	ToolCalls    []llm.ToolCall
	// Script overrides ResponseText/ToolCalls when set.
	Script []llm.Response
	Err    error
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" && len(cfg.ToolCalls) == 0 && len(cfg.Script) == 0 {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.calls)
	a.calls = append(a.calls, input)
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	if len(a.cfg.Script) > 0 {
		if n >= len(a.cfg.Script) {
			n = len(a.cfg.Script) - 1
		}
		return a.cfg.Script[n], nil
	}
	return llm.Response{Text: a.cfg.ResponseText, ToolCalls: a.cfg.ToolCalls}, nil
}

// Calls returns every context passed to Generate.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.calls))
	copy(out, a.calls)
	return out
}
