package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/google"
)

// ActionSendEmail and ActionCreateEvent are the action types the
// confirmation gate's runner dispatches on.
const (
	ActionSendEmail   = "send_email"
	ActionCreateEvent = "create_calendar_event"
)

// ListCalendarEventsTool reads the user's upcoming calendar. Read-only, so
// it executes immediately without a confirmation round-trip.
type ListCalendarEventsTool struct {
	calendar *google.CalendarService
}

func NewListCalendarEventsTool(calendar *google.CalendarService) *ListCalendarEventsTool {
	return &ListCalendarEventsTool{calendar: calendar}
}

func (t *ListCalendarEventsTool) GetName() string { return "list_calendar_events" }

func (t *ListCalendarEventsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: "List the user's upcoming Google Calendar events.",
		Parameters: []ToolParameter{
			{Name: "days_ahead", Type: "integer", Description: "How many days ahead to look, default 7", Required: false},
			{Name: "max_results", Type: "integer", Description: "Maximum events to return, default 10", Required: false},
		},
		RequiresIdentity: true,
		ReadOnly:         true,
	}
}

func (t *ListCalendarEventsTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	daysAhead := intArg(args, "days_ahead", 7)
	maxResults := intArg(args, "max_results", 10)

	now := time.Now()
	events, err := t.calendar.ListEvents(ctx, userID, now, now.AddDate(0, 0, daysAhead), maxResults)
	if err != nil {
		return ToolResult{}, err
	}

	if len(events) == 0 {
		return successResult(t.GetName(),
			fmt.Sprintf("No events in the next %d days.", daysAhead), events, time.Since(start)), nil
	}

	content, encErr := json.Marshal(events)
	if encErr != nil {
		return ToolResult{}, fmt.Errorf("failed to encode events: %w", encErr)
	}
	return successResult(t.GetName(), string(content), events, time.Since(start)), nil
}

// CreateCalendarEventTool prepares an event creation behind the
// confirmation gate; nothing is written until the user confirms.
type CreateCalendarEventTool struct {
	gate *confirm.Gate
}

func NewCreateCalendarEventTool(gate *confirm.Gate) *CreateCalendarEventTool {
	return &CreateCalendarEventTool{gate: gate}
}

func (t *CreateCalendarEventTool) GetName() string { return ActionCreateEvent }

func (t *CreateCalendarEventTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name: t.GetName(),
		Description: "Create a Google Calendar event. The event is NOT created immediately: " +
			"this returns a confirmation id and a preview for the user to approve.",
		Parameters: []ToolParameter{
			{Name: "summary", Type: "string", Description: "Event title", Required: true},
			{Name: "start", Type: "string", Description: "Start time, RFC3339", Required: true},
			{Name: "end", Type: "string", Description: "End time, RFC3339", Required: true},
			{Name: "description", Type: "string", Description: "Event description", Required: false},
			{Name: "location", Type: "string", Description: "Event location", Required: false},
		},
		RequiresIdentity: true,
	}
}

func (t *CreateCalendarEventTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	userID, _ := args[ArgUserID].(string)
	summary, _ := args["summary"].(string)
	startTime, _ := args["start"].(string)
	endTime, _ := args["end"].(string)
	if summary == "" || startTime == "" || endTime == "" {
		return errorResult(t.GetName(),
			"missing required parameters: summary, start, end", time.Since(start)), nil
	}

	payload := map[string]any{
		"summary": summary,
		"start":   startTime,
		"end":     endTime,
	}
	if description, ok := args["description"].(string); ok && description != "" {
		payload["description"] = description
	}
	if location, ok := args["location"].(string); ok && location != "" {
		payload["location"] = location
	}

	receipt, err := t.gate.Prepare(ctx, userID, ActionCreateEvent, payload)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to prepare event creation: %w", err)
	}

	content := fmt.Sprintf(
		"Awaiting user confirmation (expires in %s).\nPreview:\n%s\nAsk the user to confirm, then call confirm_action with confirmation_id %q.",
		receipt.ExpiresIn, receipt.Preview, receipt.ConfirmationID)
	res := successResult(t.GetName(), content, receipt, time.Since(start))
	res.Metadata = map[string]any{"confirmation_id": receipt.ConfirmationID}
	return res, nil
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return fallback
}
