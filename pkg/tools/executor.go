package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/google"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/observability"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
)

// Argument names the executor owns. Model-supplied values under these keys
// are overwritten unconditionally; a prompt-injected user_id can never
// cross a tenant boundary.
const (
	ArgUserID       = "user_id"
	ArgUserLocation = "user_location"
)

// CallContext carries the trusted per-request facts injected into tool
// arguments. UserID comes from the authenticated session, Location from the
// client hint and may be empty.
type CallContext struct {
	UserID   string
	Location string
}

// Executor dispatches model-issued tool calls against the catalog. Every
// failure mode is folded into a ToolResult so the orchestration loop always
// has a tool turn to append; Execute itself never returns an error.
type Executor struct {
	registry *ToolRegistry
}

func NewExecutor(registry *ToolRegistry) *Executor {
	return &Executor{registry: registry}
}

// Execute parses the call's raw arguments, injects identity, and runs the
// tool with tracing and metrics around it.
func (e *Executor) Execute(ctx context.Context, call protocol.ToolCall, cc CallContext) ToolResult {
	start := time.Now()

	tracer := observability.GetTracer("assistant.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, call.Name)),
	)
	defer span.End()

	args := ParseArgs(call)

	tool, err := e.registry.GetTool(call.Name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		e.record(ctx, call.Name, time.Since(start), err)
		return errorResult(call.Name, fmt.Sprintf("unknown tool: %s", call.Name), time.Since(start))
	}

	info := tool.GetInfo()
	if info.RequiresIdentity {
		args[ArgUserID] = cc.UserID
	}
	if info.RequiresLocation && cc.Location != "" {
		args[ArgUserLocation] = cc.Location
	}

	slog.Info("executing tool", "tool", call.Name, "user", cc.UserID, "args", preview(args, 200))

	result, execErr := e.run(ctx, tool, args)
	elapsed := time.Since(start)
	result.ExecutionTime = elapsed

	switch {
	case execErr != nil && google.IsReconnectRequired(execErr):
		span.SetStatus(codes.Error, "google reconnect required")
		e.record(ctx, call.Name, elapsed, execErr)
		slog.Warn("tool requires google reconnect", "tool", call.Name, "user", cc.UserID, "error", execErr)
		return reconnectResult(call.Name, elapsed)
	case execErr != nil:
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		e.record(ctx, call.Name, elapsed, execErr)
		slog.Error("tool execution failed", "tool", call.Name, "user", cc.UserID, "error", execErr)
		return errorResult(call.Name, execErr.Error(), elapsed)
	case !result.Success:
		span.SetStatus(codes.Error, result.Error)
		e.record(ctx, call.Name, elapsed, fmt.Errorf("%s", result.Error))
	default:
		span.SetStatus(codes.Ok, "success")
		e.record(ctx, call.Name, elapsed, nil)
	}

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", elapsed.Milliseconds()),
	)
	slog.Debug("tool finished", "tool", call.Name, "success", result.Success, "result", preview(result.Content, 200))
	return result
}

// run isolates the tool call so a panicking tool degrades into a failed
// result instead of killing the request goroutine.
func (e *Executor) run(ctx context.Context, tool Tool, args map[string]any) (result ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", tool.GetName(), "panic", r)
			result = errorResult(tool.GetName(), fmt.Sprintf("tool panicked: %v", r), 0)
			err = nil
		}
	}()
	return tool.Execute(ctx, args)
}

// ParseArgs decodes the model-supplied raw argument JSON. Arguments are
// untrusted text: empty or malformed input degrades to an empty map with a
// warning, never an error, so a single garbled call cannot abort a turn.
func ParseArgs(call protocol.ToolCall) map[string]any {
	if call.RawArgs == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(call.RawArgs), &args); err != nil {
		slog.Warn("malformed tool arguments, using empty args",
			"tool", call.Name, "raw", truncate(call.RawArgs, 200), "error", err)
		return map[string]any{}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}

func preview(v any, limit int) string {
	s, ok := v.(string)
	if !ok {
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		s = string(encoded)
	}
	return truncate(s, limit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func (e *Executor) record(ctx context.Context, toolName string, elapsed time.Duration, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, toolName, elapsed, err)
	}
}
