package tools

import "time"

func successResult(toolName, content string, output any, elapsed time.Duration) ToolResult {
	return ToolResult{
		Success:       true,
		Content:       content,
		Output:        output,
		ToolName:      toolName,
		ExecutionTime: elapsed,
	}
}

func errorResult(toolName, message string, elapsed time.Duration) ToolResult {
	if message == "" {
		message = "unknown error"
	}
	return ToolResult{
		Success:       false,
		Error:         message,
		ToolName:      toolName,
		ExecutionTime: elapsed,
	}
}

// reconnectResult is the one shape every Google auth failure collapses to;
// the model relays it instead of retrying the tool.
func reconnectResult(toolName string, elapsed time.Duration) ToolResult {
	return ToolResult{
		Success:           false,
		Error:             "Google account connection required. Please reconnect your Google account and try again.",
		ReconnectRequired: true,
		ToolName:          toolName,
		ExecutionTime:     elapsed,
	}
}
