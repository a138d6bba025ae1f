// Package openai adapts the OpenAI chat completions API to llm.LLMAdapter.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Adapter struct {
	client *openai.Client
	model  string
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Adapter{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: toMessages(input),
	}
	if len(input.Tools) > 0 {
		req.Tools = toTools(input.Tools)
		req.ToolChoice = "auto"
	}
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Response{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, errorsx.Wrap(errors.New("openai: no choices"), errorsx.ReasonLLMGenerate)
	}
	choice := resp.Choices[0]
	out := llm.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return llm.Response{}, errorsx.Wrap(fmt.Errorf("openai: tool call %s arguments: %w", tc.Function.Name, err), errorsx.ReasonLLMGenerate)
			}
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

func toMessages(input llm.Context) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input.Messages)+1)
	if input.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: input.System})
	}
	for _, m := range input.Messages {
		msg := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		switch m.Role {
		case llm.RoleTool:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.ToolName
		case llm.RoleAssistant:
			for _, tc := range m.ToolCalls {
				raw, _ := json.Marshal(tc.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(raw),
					},
				})
			}
		}
		out = append(out, msg)
	}
	return out
}

func toTools(tools []llm.Tool) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		schema := t.Schema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

// classify maps HTTP 429 to resilience.RateLimitError so retry and breaker
// policies can see it.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errorsx.Wrap(resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}, errorsx.ReasonLLMRateLimit)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errorsx.Wrap(resilience.RateLimitError{Provider: "openai", Message: reqErr.Error()}, errorsx.ReasonLLMRateLimit)
	}
	return errorsx.Wrap(fmt.Errorf("openai: %w", err), errorsx.ReasonLLMGenerate)
}
