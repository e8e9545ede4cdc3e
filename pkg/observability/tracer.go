// Package observability wires OpenTelemetry tracing and metrics around the
// LLM, tool, and query boundaries.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Span names used across the codebase.
const (
	SpanLLMRequest    = "llm.request"
	SpanToolExecution = "tool.execution"
	SpanQueryExecute  = "query.execute"
	SpanOrchestration = "agent.orchestrate"
)

// Common attribute keys.
const (
	AttrLLMModel        = "llm.model"
	AttrLLMProvider     = "llm.provider"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrToolName        = "tool.name"
	AttrTenantSchema    = "tenant.schema"
)

// GetTracer returns a tracer scoped to the given instrumentation name.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
