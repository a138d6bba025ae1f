package llm

import (
	"context"
	"fmt"
)

// ToolHandler executes a model-requested function and returns its textual result.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// MaxToolRounds bounds the function-calling round trips in RunTools.
const MaxToolRounds = 3

// RunTools drives a function-calling exchange: each tool call the model
// makes is executed through handlers and fed back until the model answers
// with text or MaxToolRounds is reached.
func RunTools(ctx context.Context, adapter LLMAdapter, input Context, handlers map[string]ToolHandler) (Response, error) {
	var resp Response
	for round := 0; round <= MaxToolRounds; round++ {
		var err error
		resp, err = adapter.Generate(ctx, input)
		if err != nil {
			return Response{}, err
		}
		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}
		input.Messages = append(input.Messages, Message{Role: RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			out := ""
			handler, ok := handlers[call.Name]
			if !ok {
				out = fmt.Sprintf("error: unknown function %q", call.Name)
			} else if res, err := handler(ctx, call.Arguments); err != nil {
				out = "error: " + err.Error()
			} else {
				out = res
			}
			input.Messages = append(input.Messages, Message{
				Role:       RoleTool,
				Content:    out,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	if resp.Text == "" {
		return resp, fmt.Errorf("llm: no answer after %d tool rounds", MaxToolRounds)
	}
	return resp, nil
}
