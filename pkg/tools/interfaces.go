// Package tools implements the assistant's tool catalog and executor: the
// built-in tools (tenant data queries, calendar, email, maps, web search),
// remote MCP tools, and the dispatch layer that injects trusted identity
// before any tool runs.
package tools

import (
	"context"
	"errors"
	"time"
)

// ErrToolNotFound reports a dispatch against a name absent from the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ToolInfo describes one tool for the model and for dispatch decisions.
// RequiresIdentity and RequiresLocation mark injection points the executor
// fills from the authenticated request, never from model arguments.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`

	RequiresIdentity bool `json:"requires_identity,omitempty"`
	RequiresLocation bool `json:"requires_location,omitempty"`
	ReadOnly         bool `json:"read_only,omitempty"`

	// Source names the tool source the tool came from ("local" or an MCP
	// server name).
	Source string `json:"source,omitempty"`
}

type ToolParameter struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Required    bool           `json:"required"`
	Default     any            `json:"default,omitempty"`
	Enum        []string       `json:"enum,omitempty"`
	Items       map[string]any `json:"items,omitempty"`
}

// ToolResult is the uniform outcome of a tool execution. Content is the
// text handed back to the model; Output carries structured data for callers
// that want more than prose.
type ToolResult struct {
	Success           bool           `json:"success"`
	Content           string         `json:"content,omitempty"`
	Output            any            `json:"output,omitempty"`
	Error             string         `json:"error,omitempty"`
	ReconnectRequired bool           `json:"reconnect_required,omitempty"`
	ToolName          string         `json:"tool_name"`
	ExecutionTime     time.Duration  `json:"execution_time,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	// Execute runs the tool with already-parsed, already-injected args.
	// A failed execution is reported through the result, not the error;
	// the error return is for faults the executor should translate
	// (auth errors, transport errors).
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	GetName() string
}

// ToolSource is a provider of tools: the local built-ins or a remote MCP
// server.
type ToolSource interface {
	GetName() string

	GetType() string

	DiscoverTools(ctx context.Context) error

	ListTools() []ToolInfo

	GetTool(name string) (Tool, bool)
}
