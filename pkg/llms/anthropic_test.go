package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
)

func newAnthropicProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.LLMProviderConfig{
		Type:   "anthropic",
		Model:  "claude-sonnet-4-20250514",
		APIKey: "sk-ant-test",
		Host:   server.URL,
	}
	cfg.SetDefaults()

	provider, err := NewAnthropicProvider(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return provider
}

func TestAnthropicProvider_Complete_ToolUse(t *testing.T) {
	provider := newAnthropicProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		var request anthropicRequest
		json.NewDecoder(r.Body).Decode(&request)
		if request.System != "be helpful" {
			t.Errorf("system = %q", request.System)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "toolu_1", "name": "query_data",
					"input": map[string]any{"query": "SELECT 1"}},
			},
			"stop_reason": "tool_use",
			"usage":       map[string]int{"input_tokens": 30, "output_tokens": 10},
		})
	})

	completion, err := provider.Complete(context.Background(), []protocol.Message{
		protocol.SystemMessage("be helpful"),
		protocol.UserMessage("how many invoices?"),
	}, []ToolDefinition{{Name: "query_data", Parameters: map[string]any{"type": "object"}}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "let me check" {
		t.Errorf("Text = %q", completion.Text)
	}
	if len(completion.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %v", completion.ToolCalls)
	}
	call := completion.ToolCalls[0]
	if call.ID != "toolu_1" || call.Name != "query_data" {
		t.Errorf("call = %+v", call)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(call.RawArgs), &args); err != nil {
		t.Fatalf("RawArgs %q is not JSON: %v", call.RawArgs, err)
	}
	if completion.Usage.TotalTokens != 40 {
		t.Errorf("TotalTokens = %d, want 40", completion.Usage.TotalTokens)
	}
}

func TestToAnthropicMessages(t *testing.T) {
	calls := []protocol.ToolCall{{ID: "toolu_1", Name: "search_web", RawArgs: `{"query":"x"}`}}
	messages := []protocol.Message{
		protocol.SystemMessage("be helpful"),
		protocol.UserMessage("find x"),
		protocol.AssistantToolCallMessage("checking", calls),
		protocol.ToolResultMessage("toolu_1", "search_web", "result text"),
	}

	system, converted := toAnthropicMessages(messages)
	if system != "be helpful" {
		t.Errorf("system = %q", system)
	}
	if len(converted) != 3 {
		t.Fatalf("len = %d, want 3 (system lifted out)", len(converted))
	}

	assistant := converted[1]
	if assistant.Role != "assistant" || len(assistant.Content) != 2 {
		t.Fatalf("assistant turn = %+v", assistant)
	}
	if assistant.Content[1].Type != "tool_use" || assistant.Content[1].ID != "toolu_1" {
		t.Errorf("tool_use block = %+v", assistant.Content[1])
	}

	result := converted[2]
	if result.Role != "user" || result.Content[0].Type != "tool_result" {
		t.Fatalf("tool result turn = %+v", result)
	}
	if result.Content[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_use_id = %q", result.Content[0].ToolUseID)
	}
}

func TestToAnthropicMessages_MalformedToolArgs(t *testing.T) {
	calls := []protocol.ToolCall{{ID: "toolu_1", Name: "search_web", RawArgs: `{"broken`}}
	_, converted := toAnthropicMessages([]protocol.Message{
		protocol.AssistantToolCallMessage("", calls),
	})

	input := converted[0].Content[0].Input
	if string(input) != `{}` {
		t.Errorf("input = %s, want empty object substitution", input)
	}
}
