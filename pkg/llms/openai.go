package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/httpclient"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/observability"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
)

// OpenAIProvider speaks the chat completions API.
type OpenAIProvider struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
}

func NewOpenAIProvider(cfg *config.LLMProviderConfig) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openai config: %w", err)
	}

	return &OpenAIProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.cfg.Model }

func (p *OpenAIProvider) Close() error { return nil }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []protocol.Message, defs []ToolDefinition) (*Completion, error) {
	start := time.Now()

	tracer := observability.GetTracer("assistant.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMProvider, "openai"),
			attribute.String(observability.AttrLLMModel, p.cfg.Model),
		),
	)
	defer span.End()

	request := openAIRequest{
		Model:       p.cfg.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	for _, def := range defs {
		tool := openAITool{Type: "function"}
		tool.Function.Name = def.Name
		tool.Function.Description = def.Description
		tool.Function.Parameters = def.Parameters
		request.Tools = append(request.Tools, tool)
	}

	var response openAIResponse
	if err := p.post(ctx, "/chat/completions", request, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.record(ctx, time.Since(start), 0, 0, err)
		return nil, err
	}
	if response.Error != nil {
		err := fmt.Errorf("openai api error: %s", response.Error.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.record(ctx, time.Since(start), 0, 0, err)
		return nil, err
	}
	if len(response.Choices) == 0 {
		err := fmt.Errorf("openai returned no choices")
		span.RecordError(err)
		p.record(ctx, time.Since(start), 0, 0, err)
		return nil, err
	}

	choice := response.Choices[0].Message
	completion := &Completion{
		Text: choice.Content,
		Usage: Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}
	for _, call := range choice.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, protocol.ToolCall{
			ID:      call.ID,
			Name:    call.Function.Name,
			RawArgs: call.Function.Arguments,
		})
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, completion.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, completion.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(completion.ToolCalls)),
	)
	span.SetStatus(codes.Ok, "success")
	p.record(ctx, time.Since(start), completion.Usage.PromptTokens, completion.Usage.CompletionTokens, nil)
	return completion, nil
}

func (p *OpenAIProvider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read openai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, truncateBody(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode openai response: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) record(ctx context.Context, elapsed time.Duration, in, out int, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.cfg.Model, elapsed, in, out, err)
	}
}

func toOpenAIMessages(messages []protocol.Message) []openAIMessage {
	converted := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		out := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			tc := openAIToolCall{ID: call.ID, Type: "function"}
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.RawArgs
			out.ToolCalls = append(out.ToolCalls, tc)
		}
		converted = append(converted, out)
	}
	return converted
}

func truncateBody(raw []byte) string {
	const limit = 512
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
