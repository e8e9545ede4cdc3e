package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
)

// ConfirmActionTool resolves a pending confirmation on the user's behalf.
// The model calls it only after the user explicitly confirms or declines.
type ConfirmActionTool struct {
	gate *confirm.Gate
}

func NewConfirmActionTool(gate *confirm.Gate) *ConfirmActionTool {
	return &ConfirmActionTool{gate: gate}
}

func (t *ConfirmActionTool) GetName() string { return "confirm_action" }

func (t *ConfirmActionTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: t.GetName(),
		Description: "Execute or cancel a previously prepared action. Only call this after the user " +
			"has explicitly confirmed or declined the preview.",
		Parameters: []ToolParameter{
			{Name: "confirmation_id", Type: "string", Description: "Id returned when the action was prepared", Required: true},
			{Name: "confirmed", Type: "boolean", Description: "true to execute, false to cancel", Required: true},
		},
		RequiresIdentity: true,
	}
}

func (t *ConfirmActionTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	confirmationID, _ := args["confirmation_id"].(string)
	confirmed, _ := args["confirmed"].(bool)
	if confirmationID == "" {
		return errorResult(t.GetName(), "missing required parameter: confirmation_id", time.Since(start)), nil
	}

	decision := t.gate.Confirm(ctx, confirmationID, userID, confirmed)

	switch decision.Outcome {
	case confirm.OutcomeConfirmed:
		if decision.Err != "" {
			return errorResult(t.GetName(),
				fmt.Sprintf("The action was confirmed but failed to execute: %s", decision.Err),
				time.Since(start)), nil
		}
		res := successResult(t.GetName(), "The action was executed successfully.", decision.Result, time.Since(start))
		res.Metadata = map[string]any{"outcome": string(decision.Outcome)}
		return res, nil
	case confirm.OutcomeCancelled:
		res := successResult(t.GetName(), "The action was cancelled; nothing was executed.", nil, time.Since(start))
		res.Metadata = map[string]any{"outcome": string(decision.Outcome)}
		return res, nil
	case confirm.OutcomeUnauthorized:
		return errorResult(t.GetName(),
			"This confirmation belongs to a different user.", time.Since(start)), nil
	default:
		return errorResult(t.GetName(),
			"This confirmation has expired or was already used. Prepare the action again if still needed.",
			time.Since(start)), nil
	}
}
