// Package protocol defines the provider-agnostic conversation shapes shared
// by the orchestration loop, the tool executor, and the LLM adapters.
package protocol

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model-requested tool invocation. RawArgs carries the
// arguments exactly as the provider returned them; it is untrusted text and
// is only parsed by the tool executor.
type ToolCall struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	RawArgs string `json:"raw_args"`
}

// Message is a single conversation turn. A transcript is an ordered slice of
// messages owned by one orchestration request; turns are append-only and
// never mutated after being sent to a provider.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// SystemMessage returns a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantToolCallMessage returns the assistant turn that carries the tool
// calls a provider emitted. It must be appended to the transcript before the
// corresponding tool result turn.
func AssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage returns the tool turn correlated with a prior tool call.
func ToolResultMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: toolName}
}
