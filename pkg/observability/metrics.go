package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records counters and histograms for the external call boundaries.
// A nil *Metrics is safe to call; all recorders no-op.
type Metrics struct {
	llmCalls      metric.Int64Counter
	llmDuration   metric.Float64Histogram
	llmTokens     metric.Int64Counter
	toolCalls     metric.Int64Counter
	toolDuration  metric.Float64Histogram
	queryCalls    metric.Int64Counter
	queryDuration metric.Float64Histogram
}

var (
	globalMu      sync.RWMutex
	globalMetrics *Metrics
)

// Init sets up the Prometheus-exporting meter provider and the global
// Metrics instance. The exporter registers with the default Prometheus
// registry; the HTTP server exposes it on /metrics.
func Init() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("assistant")

	m := &Metrics{}
	if m.llmCalls, err = meter.Int64Counter("llm_calls_total",
		metric.WithDescription("LLM completion requests")); err != nil {
		return nil, err
	}
	if m.llmDuration, err = meter.Float64Histogram("llm_call_duration_seconds",
		metric.WithDescription("LLM completion latency")); err != nil {
		return nil, err
	}
	if m.llmTokens, err = meter.Int64Counter("llm_tokens_total",
		metric.WithDescription("LLM tokens consumed")); err != nil {
		return nil, err
	}
	if m.toolCalls, err = meter.Int64Counter("tool_executions_total",
		metric.WithDescription("Tool executions")); err != nil {
		return nil, err
	}
	if m.toolDuration, err = meter.Float64Histogram("tool_execution_duration_seconds",
		metric.WithDescription("Tool execution latency")); err != nil {
		return nil, err
	}
	if m.queryCalls, err = meter.Int64Counter("tenant_queries_total",
		metric.WithDescription("Tenant data queries")); err != nil {
		return nil, err
	}
	if m.queryDuration, err = meter.Float64Histogram("tenant_query_duration_seconds",
		metric.WithDescription("Tenant data query latency")); err != nil {
		return nil, err
	}

	globalMu.Lock()
	globalMetrics = m
	globalMu.Unlock()

	return m, nil
}

// GetGlobalMetrics returns the process-wide Metrics, or nil before Init.
func GetGlobalMetrics() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

func outcomeAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "error")
	}
	return attribute.String("outcome", "success")
}

// RecordLLMCall records one completion request.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model), outcomeAttr(err))
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "input")))
	}
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "output")))
	}
}

// RecordToolExecution records one tool dispatch.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), outcomeAttr(err))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordQuery records one tenant-scoped data query.
func (m *Metrics) RecordQuery(ctx context.Context, schema string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("schema", schema), outcomeAttr(err))
	m.queryCalls.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, duration.Seconds(), attrs)
}
