package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/redact"
	"github.com/harunnryd/sapa/pkg/resilience"
	"github.com/harunnryd/sapa/pkg/tools"
)

// Catalog lists the tools a classifier may choose from.
type Catalog interface {
	List() []tools.Spec
}

type ClassifierConfig struct {
	Prompt  string
	Timeout time.Duration
	// Exclude hides tools from the classifier (e.g. tools only reachable by keyword).
	Exclude []string
}

// ClassifierRouter asks an LLM to pick a tool through function calling.
type ClassifierRouter struct {
	adapter llm.LLMAdapter
	catalog Catalog
	cfg     ClassifierConfig
	log     *slog.Logger
}

func NewClassifierRouter(adapter llm.LLMAdapter, catalog Catalog, cfg ClassifierConfig, log *slog.Logger) *ClassifierRouter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = classifierPrompt()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ClassifierRouter{adapter: adapter, catalog: catalog, cfg: cfg, log: log}
}

func (r *ClassifierRouter) Route(ctx context.Context, utterance string) (Intent, error) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Intent{}, nil
	}
	if r.adapter == nil {
		return Intent{}, errors.New("classifier: missing llm adapter")
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	resp, err := r.adapter.Generate(ctx, llm.UserText(r.cfg.Prompt, text, r.declarations()...))
	if err != nil {
		r.log.Warn("classifier_error", "provider", r.adapter.Name(), "error", err, "text", redact.Text(text))
		reason := errorsx.ReasonLLMGenerate
		if resilience.IsRateLimit(err) {
			reason = errorsx.ReasonLLMRateLimit
		}
		return Intent{}, errorsx.Wrap(fmt.Errorf("classifier %s: %w", r.adapter.Name(), err), reason)
	}
	if len(resp.ToolCalls) == 0 {
		return Intent{}, nil
	}
	call := resp.ToolCalls[0]
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	r.log.Debug("classifier_selected", "tool", call.Name)
	return Intent{Tool: call.Name, Args: args, Trigger: "llm:" + r.adapter.Name()}, nil
}

func (r *ClassifierRouter) declarations() []llm.Tool {
	if r.catalog == nil {
		return nil
	}
	var out []llm.Tool
	for _, spec := range r.catalog.List() {
		if r.excluded(spec.Name) {
			continue
		}
		out = append(out, llm.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			Schema:      spec.JSONSchema(),
		})
	}
	return out
}

func (r *ClassifierRouter) excluded(name string) bool {
	for _, ex := range r.cfg.Exclude {
		if ex == name {
			return true
		}
	}
	return false
}

func classifierPrompt() string {
	return strings.TrimSpace(`
You route requests for a personal assistant.
If one of the available functions fulfils the request, call exactly one of them
with the arguments taken from the request. Times are 24-hour (hour 0-23, minute 0-59).
If none fits, reply with an empty message and call nothing.
`)
}
