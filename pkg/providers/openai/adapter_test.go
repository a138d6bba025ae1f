package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/sapa/pkg/errorsx"
	"github.com/harunnryd/sapa/pkg/llm"
	"github.com/harunnryd/sapa/pkg/resilience"
)

func TestGenerateMapsToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		msgs := req["messages"].([]any)
		if first := msgs[0].(map[string]any); first["role"] != "system" {
			t.Fatalf("expected system message first, got %v", first)
		}
		tools := req["tools"].([]any)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		if fn["name"] != "weather" {
			t.Fatalf("unexpected tool %v", fn)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"weather","arguments":"{\"city\":\"Mumbai\"}"}}]}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{APIKey: "k", BaseURL: srv.URL})
	in := llm.UserText("route", "weather in Mumbai", llm.Tool{Name: "weather", Schema: map[string]any{"type": "object"}})
	resp, err := a.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "weather" || resp.ToolCalls[0].Arguments["city"] != "Mumbai" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 5 || resp.FinishReason != "tool_calls" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewAdapter(Config{BaseURL: srv.URL}).Generate(context.Background(), llm.UserText("", "hi"))
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !errorsx.HasReason(err, errorsx.ReasonLLMRateLimit) {
		t.Fatalf("expected rate limit reason, got %s", errorsx.Reason(err))
	}
}

func TestToMessagesCarriesToolResults(t *testing.T) {
	msgs := toMessages(llm.Context{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "web_search", Arguments: map[string]any{"query": "go"}}}},
		{Role: llm.RoleTool, Content: "[]", ToolCallID: "1", ToolName: "web_search"},
	}})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].ToolCalls[0].Function.Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected arguments %q", msgs[1].ToolCalls[0].Function.Arguments)
	}
	if msgs[2].ToolCallID != "1" || msgs[2].Role != "tool" {
		t.Fatalf("unexpected tool message %+v", msgs[2])
	}
}
