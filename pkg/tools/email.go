package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
)

// SendEmailTool prepares an outgoing email behind the confirmation gate.
type SendEmailTool struct {
	gate *confirm.Gate
}

func NewSendEmailTool(gate *confirm.Gate) *SendEmailTool {
	return &SendEmailTool{gate: gate}
}

func (t *SendEmailTool) GetName() string { return ActionSendEmail }

func (t *SendEmailTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: t.GetName(),
		Description: "Send an email from the user's Gmail account. The email is NOT sent immediately: " +
			"this returns a confirmation id and a preview for the user to approve.",
		Parameters: []ToolParameter{
			{Name: "to", Type: "string", Description: "Recipient email address", Required: true},
			{Name: "subject", Type: "string", Description: "Email subject", Required: true},
			{Name: "body", Type: "string", Description: "Plain-text email body", Required: true},
		},
		RequiresIdentity: true,
	}
}

func (t *SendEmailTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	if to == "" || subject == "" {
		return errorResult(t.GetName(), "missing required parameters: to, subject", time.Since(start)), nil
	}

	receipt, err := t.gate.Prepare(ctx, userID, ActionSendEmail, map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to prepare email: %w", err)
	}

	content := fmt.Sprintf(
		"Awaiting user confirmation (expires in %s).\nPreview:\n%s\nAsk the user to confirm, then call confirm_action with confirmation_id %q.",
		receipt.ExpiresIn, receipt.Preview, receipt.ConfirmationID)
	res := successResult(t.GetName(), content, receipt, time.Since(start))
	res.Metadata = map[string]any{"confirmation_id": receipt.ConfirmationID}
	return res, nil
}
