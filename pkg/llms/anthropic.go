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

const anthropicVersion = "2023-06-01"

// AnthropicProvider speaks the messages API. The neutral transcript maps
// onto content blocks: tool calls become tool_use blocks on assistant
// turns, tool results become tool_result blocks on user turns.
type AnthropicProvider struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
}

func NewAnthropicProvider(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("anthropic config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid anthropic config: %w", err)
	}

	return &AnthropicProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}, nil
}

func (p *AnthropicProvider) Name() string { return p.cfg.Model }

func (p *AnthropicProvider) Close() error { return nil }

type anthropicContent struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []protocol.Message, defs []ToolDefinition) (*Completion, error) {
	start := time.Now()

	tracer := observability.GetTracer("assistant.llms")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMProvider, "anthropic"),
			attribute.String(observability.AttrLLMModel, p.cfg.Model),
		),
	)
	defer span.End()

	system, converted := toAnthropicMessages(messages)
	request := anthropicRequest{
		Model:       p.cfg.Model,
		System:      system,
		Messages:    converted,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	for _, def := range defs {
		request.Tools = append(request.Tools, anthropicTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		})
	}

	var response anthropicResponse
	if err := p.post(ctx, "/v1/messages", request, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.record(ctx, time.Since(start), 0, 0, err)
		return nil, err
	}
	if response.Error != nil {
		err := fmt.Errorf("anthropic api error: %s", response.Error.Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.record(ctx, time.Since(start), 0, 0, err)
		return nil, err
	}

	completion := &Completion{
		Usage: Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			completion.Text += block.Text
		case "tool_use":
			completion.ToolCalls = append(completion.ToolCalls, protocol.ToolCall{
				ID:      block.ID,
				Name:    block.Name,
				RawArgs: string(block.Input),
			})
		}
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

func (p *AnthropicProvider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read anthropic response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, truncateBody(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	return nil
}

func (p *AnthropicProvider) record(ctx context.Context, elapsed time.Duration, in, out int, err error) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.cfg.Model, elapsed, in, out, err)
	}
}

// toAnthropicMessages splits out the system prompt and converts each turn.
// Tool call arguments pass through as raw JSON; when the raw text is not
// valid JSON an empty object is substituted since the API requires a JSON
// input value.
func toAnthropicMessages(messages []protocol.Message) (string, []anthropicMessage) {
	var system string
	converted := make([]anthropicMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content

		case protocol.RoleAssistant:
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				input := json.RawMessage(call.RawArgs)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: input,
				})
			}
			converted = append(converted, anthropicMessage{Role: "assistant", Content: blocks})

		case protocol.RoleTool:
			converted = append(converted, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		default:
			converted = append(converted, anthropicMessage{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: msg.Content}},
			})
		}
	}
	return system, converted
}
