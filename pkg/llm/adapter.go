package llm

import "context"

// Tool is a function declaration offered to the model.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolName   string
	ToolCalls  []ToolCall
}

type Context struct {
	System   string
	Messages []Message
	Tools    []Tool
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	ToolCalls    []ToolCall
}

// LLMAdapter is a single-shot chat completion backend.
type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// UserText builds a single-turn context.
func UserText(system, text string, tools ...Tool) Context {
	return Context{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: text}},
		Tools:    tools,
	}
}
