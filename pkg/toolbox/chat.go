package toolbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/tools"
)

// Chat answers open questions with an LLM that may search the web.
type Chat struct {
	adapter llm.LLMAdapter
	search  *Search
	system  string
	log     *slog.Logger
}

func NewChat(adapter llm.LLMAdapter, search *Search, system string, log *slog.Logger) *Chat {
	if strings.TrimSpace(system) == "" {
		system = "You are a helpful personal assistant. Answer briefly, in plain sentences suitable for speech."
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chat{adapter: adapter, search: search, system: system, log: log}
}

func (c *Chat) Spec() tools.Spec {
	return tools.Spec{
		Name:        "chat",
		Description: "Answers general questions, searching the web when real-time information is needed.",
		Params: []tools.Param{
			{Name: "message", Type: tools.String, Required: true, Description: "The user's question"},
		},
	}
}

var webSearchTool = llm.Tool{
	Name:        "web_search",
	Description: "Searches Google for real-time information.",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search query."},
		},
		"required": []any{"query"},
	},
}

func (c *Chat) Call(ctx context.Context, args map[string]any) (invoke.Result, error) {
	message := strings.TrimSpace(cast.ToString(args["message"]))
	input := llm.UserText(c.system, message)
	handlers := map[string]llm.ToolHandler{}
	if c.search != nil {
		input.Tools = []llm.Tool{webSearchTool}
		handlers[webSearchTool.Name] = c.webSearch
	}
	resp, err := llm.RunTools(ctx, c.adapter, input, handlers)
	if err != nil {
		return invoke.Result{}, err
	}
	return invoke.Result{Text: strings.TrimSpace(resp.Text)}, nil
}

// webSearch returns results as JSON so the model can cite titles and links.
func (c *Chat) webSearch(ctx context.Context, args map[string]any) (string, error) {
	query := cast.ToString(args["query"])
	c.log.Info("chat_web_search", "provider", c.adapter.Name())
	items, err := c.search.Query(ctx, query)
	if err != nil {
		return `{"error":"` + jsonEscape(invoke.Describe(err)) + `"}`, nil
	}
	if len(items) == 0 {
		return `{"error":"No search results found."}`, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func jsonEscape(s string) string {
	raw, _ := json.Marshal(s)
	return strings.Trim(string(raw), `"`)
}
