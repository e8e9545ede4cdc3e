// Package agent runs the tool-calling orchestration loop: one user message
// in, a bounded sequence of model completions and tool executions, one
// final answer out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/llms"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/observability"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tools"
)

// StopReason explains why a turn ended.
type StopReason string

const (
	// StopFinished: the model answered without requesting a tool.
	StopFinished StopReason = "finished"
	// StopMaxIterations: the iteration cap was hit; the result is partial.
	StopMaxIterations StopReason = "max_iterations"
	// StopDegraded: the provider failed mid-turn; tool results gathered so
	// far are surfaced without a closing completion.
	StopDegraded StopReason = "degraded"
)

// Request is one user turn entering the loop.
type Request struct {
	UserID        string             `json:"user_id"`
	Message       string             `json:"message"`
	History       []protocol.Message `json:"history,omitempty"`
	Location      string             `json:"location,omitempty"`
	ModelOverride string             `json:"model,omitempty"`
}

// ToolTrace records one executed tool call for the response payload.
type ToolTrace struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Outcome is the completed turn.
type Outcome struct {
	FinalText  string      `json:"final_text"`
	Model      string      `json:"model"`
	StopReason StopReason  `json:"stop_reason"`
	Iterations int         `json:"iterations"`
	ToolsUsed  []ToolTrace `json:"tools_used,omitempty"`
	Usage      llms.Usage  `json:"usage"`
}

// Agent orchestrates providers and tools for one deployment.
type Agent struct {
	providers *llms.ProviderRegistry
	registry  *tools.ToolRegistry
	executor  *tools.Executor
	routing   config.RoutingConfig
	cfg       config.AgentConfig
}

func New(providers *llms.ProviderRegistry, registry *tools.ToolRegistry, executor *tools.Executor, routing config.RoutingConfig, cfg config.AgentConfig) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	return &Agent{
		providers: providers,
		registry:  registry,
		executor:  executor,
		routing:   routing,
		cfg:       cfg,
	}
}

// Handle runs the loop for one request. Configuration faults (no such
// provider) fail fast before any model call; mid-loop faults degrade into a
// labeled partial outcome instead of an error.
func (a *Agent) Handle(ctx context.Context, req Request) (*Outcome, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	modelName := RouteModel(req.Message, req.ModelOverride, a.routing)
	provider, err := resolveProvider(a.providers, modelName)
	if err != nil {
		return nil, err
	}

	tracer := observability.GetTracer("assistant.agent")
	ctx, span := tracer.Start(ctx, observability.SpanOrchestration,
		trace.WithAttributes(attribute.String(observability.AttrLLMModel, modelName)),
	)
	defer span.End()

	defs := llms.DefinitionsFromToolInfos(a.registry.ListTools())
	transcript := a.buildTranscript(req)
	callCtx := tools.CallContext{UserID: req.UserID, Location: req.Location}

	outcome := &Outcome{Model: modelName}
	start := time.Now()

	for outcome.Iterations < a.cfg.MaxIterations {
		completion, err := provider.Complete(ctx, transcript, defs)
		if err != nil {
			slog.Error("provider failed mid-turn", "model", modelName,
				"iteration", outcome.Iterations, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider failure")
			outcome.StopReason = StopDegraded
			outcome.FinalText = degradedText(outcome.ToolsUsed)
			return outcome, nil
		}
		outcome.Usage = outcome.Usage.Add(completion.Usage)

		if len(completion.ToolCalls) == 0 {
			outcome.StopReason = StopFinished
			outcome.FinalText = completion.Text
			break
		}

		// One tool call per iteration. Extra requested calls are dropped;
		// the provider re-requests whatever it still needs next round.
		call := completion.ToolCalls[0]
		outcome.Iterations++

		result := a.executor.Execute(ctx, call, callCtx)
		outcome.ToolsUsed = append(outcome.ToolsUsed, ToolTrace{
			Name:    call.Name,
			Success: result.Success,
			Content: result.Content,
			Error:   result.Error,
		})

		transcript = append(transcript,
			protocol.AssistantToolCallMessage(completion.Text, []protocol.ToolCall{call}),
			protocol.ToolResultMessage(call.ID, call.Name, renderToolResult(result)),
		)
	}

	if outcome.StopReason == "" {
		outcome.StopReason = StopMaxIterations
		outcome.FinalText = fmt.Sprintf(
			"I hit the processing limit for this request after %d steps. Here is what I completed so far:\n%s",
			outcome.Iterations, degradedText(outcome.ToolsUsed))
		slog.Warn("orchestration hit iteration cap", "user", req.UserID, "model", modelName)
	}

	span.SetAttributes(
		attribute.String("agent.stop_reason", string(outcome.StopReason)),
		attribute.Int("agent.iterations", outcome.Iterations),
		attribute.Int(observability.AttrLLMTokensInput, outcome.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, outcome.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, string(outcome.StopReason))

	slog.Info("orchestration finished",
		"user", req.UserID,
		"model", modelName,
		"stop", outcome.StopReason,
		"iterations", outcome.Iterations,
		"tokens", outcome.Usage.TotalTokens,
		"elapsed", time.Since(start))
	return outcome, nil
}

// buildTranscript assembles [system, history..., user]. History arrives
// already ordered from the caller; it is trusted as-is.
func (a *Agent) buildTranscript(req Request) []protocol.Message {
	transcript := make([]protocol.Message, 0, len(req.History)+2)
	if a.cfg.SystemPrompt != "" {
		transcript = append(transcript, protocol.SystemMessage(a.cfg.SystemPrompt))
	}
	transcript = append(transcript, req.History...)
	transcript = append(transcript, protocol.UserMessage(req.Message))
	return transcript
}

// renderToolResult serializes a tool result into the tool turn's content.
func renderToolResult(result tools.ToolResult) string {
	if result.Success {
		if result.Content != "" {
			return result.Content
		}
		return "ok"
	}
	payload, err := json.Marshal(map[string]any{
		"error":              result.Error,
		"reconnect_required": result.ReconnectRequired,
	})
	if err != nil {
		return "error: " + result.Error
	}
	return string(payload)
}

func degradedText(traces []ToolTrace) string {
	if len(traces) == 0 {
		return "I was unable to complete the request."
	}
	var summary string
	for _, trace := range traces {
		status := "ok"
		if !trace.Success {
			status = "failed"
		}
		summary += fmt.Sprintf("- %s: %s\n", trace.Name, status)
	}
	return summary
}
