// Package llms contains the model provider adapters. Each adapter maps the
// neutral message transcript to one vendor's wire format and normalizes the
// response into text, tool calls, and token usage.
package llms

import (
	"context"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/protocol"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/tools"
)

// ToolDefinition is the provider-neutral description of a callable tool.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage is the raw token accounting from the provider, passed through
// without normalization.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Completion is one normalized model response. Empty ToolCalls means the
// model considers the turn finished.
type Completion struct {
	Text      string              `json:"text"`
	ToolCalls []protocol.ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage               `json:"usage"`
}

// Provider is one configured model endpoint.
type Provider interface {
	Name() string

	Complete(ctx context.Context, messages []protocol.Message, defs []ToolDefinition) (*Completion, error)

	Close() error
}

// DefinitionsFromToolInfos converts catalog entries into provider-neutral
// tool definitions with a JSON Schema parameter object.
func DefinitionsFromToolInfos(infos []tools.ToolInfo) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(infos))
	for _, info := range infos {
		properties := make(map[string]any, len(info.Parameters))
		var required []string
		for _, param := range info.Parameters {
			prop := map[string]any{
				"type":        orDefault(param.Type, "string"),
				"description": param.Description,
			}
			if len(param.Enum) > 0 {
				prop["enum"] = param.Enum
			}
			if param.Items != nil {
				prop["items"] = param.Items
			}
			properties[param.Name] = prop
			if param.Required {
				required = append(required, param.Name)
			}
		}
		parameters := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			parameters["required"] = required
		}
		defs = append(defs, ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  parameters,
		})
	}
	return defs
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
