package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/llms"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/registry"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tools"
)

// scriptedProvider returns canned completions in order, then repeats the
// last one.
type scriptedProvider struct {
	name        string
	completions []*llms.Completion
	err         error
	calls       int
	transcripts [][]protocol.Message
}

func (p *scriptedProvider) Name() string { return p.name }
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) Complete(ctx context.Context, messages []protocol.Message, defs []llms.ToolDefinition) (*llms.Completion, error) {
	p.calls++
	p.transcripts = append(p.transcripts, append([]protocol.Message(nil), messages...))
	if p.err != nil {
		return nil, p.err
	}
	idx := p.calls - 1
	if idx >= len(p.completions) {
		idx = len(p.completions) - 1
	}
	return p.completions[idx], nil
}

// echoTool succeeds and echoes its name.
type echoTool struct{ name string }

func (t *echoTool) GetName() string { return t.name }
func (t *echoTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.name, Description: "test tool"}
}
func (t *echoTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.ToolResult{Success: true, Content: t.name + " ran", ToolName: t.name}, nil
}

func newTestAgent(t *testing.T, provider llms.Provider, maxIterations int, toolList ...tools.Tool) *Agent {
	t.Helper()

	providers := &llms.ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[llms.Provider]()}
	if err := providers.Register("default", provider); err != nil {
		t.Fatal(err)
	}

	local := tools.NewLocalToolSource()
	for _, tool := range toolList {
		local.Add(tool)
	}
	reg := tools.NewToolRegistry()
	if err := reg.RegisterSource(context.Background(), local); err != nil {
		t.Fatal(err)
	}

	return New(providers, reg, tools.NewExecutor(reg),
		config.RoutingConfig{Default: "default"},
		config.AgentConfig{MaxIterations: maxIterations, SystemPrompt: "be helpful"})
}

func toolCallCompletion(name string) *llms.Completion {
	return &llms.Completion{
		ToolCalls: []protocol.ToolCall{{ID: "c-" + name, Name: name, RawArgs: `{}`}},
		Usage:     llms.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func TestAgent_FinishesWithoutTools(t *testing.T) {
	provider := &scriptedProvider{name: "m", completions: []*llms.Completion{
		{Text: "the answer", Usage: llms.Usage{PromptTokens: 7, CompletionTokens: 2, TotalTokens: 9}},
	}}
	agent := newTestAgent(t, provider, 10)

	outcome, err := agent.Handle(context.Background(), Request{UserID: "u1", Message: "hi"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome.StopReason != StopFinished {
		t.Errorf("StopReason = %s", outcome.StopReason)
	}
	if outcome.FinalText != "the answer" {
		t.Errorf("FinalText = %q", outcome.FinalText)
	}
	if outcome.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", outcome.Iterations)
	}
	if outcome.Usage.TotalTokens != 9 {
		t.Errorf("TotalTokens = %d", outcome.Usage.TotalTokens)
	}
}

func TestAgent_SingleToolCallThenAnswer(t *testing.T) {
	provider := &scriptedProvider{name: "m", completions: []*llms.Completion{
		toolCallCompletion("search_web"),
		{Text: "done", Usage: llms.Usage{TotalTokens: 4}},
	}}
	agent := newTestAgent(t, provider, 10, &echoTool{name: "search_web"})

	outcome, err := agent.Handle(context.Background(), Request{UserID: "u1", Message: "find x"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.StopReason != StopFinished || outcome.Iterations != 1 {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(outcome.ToolsUsed) != 1 || outcome.ToolsUsed[0].Name != "search_web" {
		t.Errorf("ToolsUsed = %+v", outcome.ToolsUsed)
	}

	// Second completion must see the assistant tool-call turn followed by
	// the tool result turn.
	second := provider.transcripts[1]
	n := len(second)
	if second[n-2].Role != protocol.RoleAssistant || len(second[n-2].ToolCalls) != 1 {
		t.Errorf("turn before last = %+v", second[n-2])
	}
	if second[n-1].Role != protocol.RoleTool || second[n-1].ToolCallID != "c-search_web" {
		t.Errorf("last turn = %+v", second[n-1])
	}
}

func TestAgent_MaxIterationsIsPartialResultNotError(t *testing.T) {
	// Provider always wants another tool call.
	provider := &scriptedProvider{name: "m", completions: []*llms.Completion{
		toolCallCompletion("search_web"),
	}}
	agent := newTestAgent(t, provider, 3, &echoTool{name: "search_web"})

	outcome, err := agent.Handle(context.Background(), Request{UserID: "u1", Message: "loop forever"})
	if err != nil {
		t.Fatalf("iteration cap must not be an error: %v", err)
	}
	if outcome.StopReason != StopMaxIterations {
		t.Errorf("StopReason = %s", outcome.StopReason)
	}
	if outcome.Iterations != 3 {
		t.Errorf("Iterations = %d, want exactly the cap", outcome.Iterations)
	}
	if len(outcome.ToolsUsed) != 3 {
		t.Errorf("ToolsUsed = %d, want 3", len(outcome.ToolsUsed))
	}
	if !strings.Contains(outcome.FinalText, "limit") {
		t.Errorf("FinalText = %q, want partial-result label", outcome.FinalText)
	}
}

func TestAgent_OnlyFirstToolCallPerIteration(t *testing.T) {
	extra := &llms.Completion{
		ToolCalls: []protocol.ToolCall{
			{ID: "c1", Name: "first_tool", RawArgs: `{}`},
			{ID: "c2", Name: "second_tool", RawArgs: `{}`},
		},
	}
	provider := &scriptedProvider{name: "m", completions: []*llms.Completion{
		extra,
		{Text: "done"},
	}}
	agent := newTestAgent(t, provider, 10,
		&echoTool{name: "first_tool"}, &echoTool{name: "second_tool"})

	outcome, err := agent.Handle(context.Background(), Request{UserID: "u1", Message: "go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.ToolsUsed) != 1 || outcome.ToolsUsed[0].Name != "first_tool" {
		t.Errorf("ToolsUsed = %+v, want only the first call executed", outcome.ToolsUsed)
	}
}

func TestAgent_ProviderFailureDegrades(t *testing.T) {
	provider := &scriptedProvider{name: "m", err: errors.New("upstream down")}
	agent := newTestAgent(t, provider, 10)

	outcome, err := agent.Handle(context.Background(), Request{UserID: "u1", Message: "hi"})
	if err != nil {
		t.Fatalf("mid-turn provider failure must degrade, not error: %v", err)
	}
	if outcome.StopReason != StopDegraded {
		t.Errorf("StopReason = %s", outcome.StopReason)
	}
}

func TestAgent_UnknownProviderFailsFast(t *testing.T) {
	provider := &scriptedProvider{name: "m", completions: []*llms.Completion{{Text: "x"}}}
	agent := newTestAgent(t, provider, 10)

	_, err := agent.Handle(context.Background(),
		Request{UserID: "u1", Message: "hi", ModelOverride: "nonexistent"})
	if err == nil {
		t.Fatal("expected fail-fast error for unknown provider")
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times before fail-fast", provider.calls)
	}
}

func TestRouteModel(t *testing.T) {
	routing := config.RoutingConfig{
		Default: "general",
		Rules: []config.RouteRule{
			{Provider: "analytics", Keywords: []string{"revenue", "invoice"}},
			{Provider: "fast", Keywords: []string{"quick"}},
		},
	}

	tests := []struct {
		name     string
		message  string
		override string
		want     string
	}{
		{"default", "hello there", "", "general"},
		{"keyword match", "show me the REVENUE for march", "", "analytics"},
		{"first rule wins", "quick revenue check", "", "analytics"},
		{"second rule", "quick question", "", "fast"},
		{"override wins", "revenue please", "custom", "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RouteModel(tt.message, tt.override, routing); got != tt.want {
				t.Errorf("RouteModel() = %q, want %q", got, tt.want)
			}
		})
	}
}
