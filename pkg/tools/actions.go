package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/confirm"
	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/google"
)

// NewActionRunner builds the confirmation gate's runner: the single place
// where confirmed side effects actually happen.
func NewActionRunner(calendar *google.CalendarService, gmail *google.GmailService) confirm.ActionRunner {
	return func(ctx context.Context, action *confirm.PendingAction) (any, error) {
		switch action.ActionType {
		case ActionSendEmail:
			var input google.SendInput
			if err := decodePayload(action.Payload, &input); err != nil {
				return nil, err
			}
			id, err := gmail.Send(ctx, action.Owner, input)
			if err != nil {
				return nil, err
			}
			return map[string]any{"message_id": id}, nil

		case ActionCreateEvent:
			var input google.CreateEventInput
			if err := decodePayload(action.Payload, &input); err != nil {
				return nil, err
			}
			return calendar.CreateEvent(ctx, action.Owner, input)

		default:
			return nil, fmt.Errorf("unknown action type: %s", action.ActionType)
		}
	}
}

func decodePayload(payload map[string]any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode action payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode action payload: %w", err)
	}
	return nil
}
