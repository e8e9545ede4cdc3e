// Package confirm implements the two-phase prepare/confirm gate guarding
// side-effecting actions. A prepared action is held under an unguessable
// confirmation ID with a short TTL and is consumable at most once.
package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/kvstore"
)

// Outcome of a confirm call.
type Outcome string

const (
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomeExpired      Outcome = "expired"
	OutcomeUnauthorized Outcome = "unauthorized"
)

// PendingAction is a prepared but unexecuted action awaiting confirmation.
type PendingAction struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// ActionRunner executes the underlying action once the owner confirms.
type ActionRunner func(ctx context.Context, action *PendingAction) (any, error)

// Receipt is returned from Prepare for the caller to surface to the user.
type Receipt struct {
	ConfirmationID string `json:"confirmation_id"`
	Preview        string `json:"preview"`
	ExpiresIn      string `json:"expires_in"`
}

// Decision is the result of a confirm call. On OutcomeConfirmed, Result
// holds the executed action's output; if execution itself failed, Err is
// set instead and the record is still consumed (the single-use guarantee
// holds even on failure).
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Result  any     `json:"result,omitempty"`
	Err     string  `json:"error,omitempty"`
}

// Gate holds pending actions in an injected TTL store and executes them
// through the provided runner on confirmation.
type Gate struct {
	store  kvstore.Store
	runner ActionRunner
	ttl    time.Duration
	clock  func() time.Time
}

// NewGate builds a Gate. ttl defaults to five minutes.
func NewGate(store kvstore.Store, runner ActionRunner, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Gate{store: store, runner: runner, ttl: ttl, clock: time.Now}
}

func pendingKey(id string) string { return "confirm:pending:" + id }

// Prepare stores a pending action and returns its receipt. Expired records
// are swept opportunistically on every call so the store cannot grow
// unbounded between requests.
func (g *Gate) Prepare(ctx context.Context, owner, actionType string, payload map[string]any) (*Receipt, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner identity is required")
	}
	if actionType == "" {
		return nil, fmt.Errorf("action type is required")
	}

	if dropped := g.store.Sweep(ctx); dropped > 0 {
		slog.Debug("swept expired pending actions", "count", dropped)
	}

	now := g.clock()
	// The timestamp namespaces the id for debuggability; uniqueness comes
	// from the random component.
	id := fmt.Sprintf("%s-%d-%s", actionType, now.Unix(), uuid.NewString())

	action := &PendingAction{
		ID:         id,
		Owner:      owner,
		ActionType: actionType,
		Payload:    payload,
		CreatedAt:  now,
		ExpiresAt:  now.Add(g.ttl),
	}
	if err := g.store.Set(ctx, pendingKey(id), action, g.ttl); err != nil {
		return nil, fmt.Errorf("failed to store pending action: %w", err)
	}

	slog.Info("prepared action awaiting confirmation", "action", actionType, "owner", owner, "id", id)

	return &Receipt{
		ConfirmationID: id,
		Preview:        Preview(actionType, payload),
		ExpiresIn:      humanDuration(g.ttl),
	}, nil
}

// Confirm resolves a pending action. An unknown id and an already-consumed
// id both yield OutcomeExpired; they are deliberately indistinguishable so
// callers cannot probe which ids ever existed. An owner mismatch leaves the
// record in place for the rightful owner.
func (g *Gate) Confirm(ctx context.Context, id, owner string, confirmed bool) *Decision {
	value, ok := g.store.Get(ctx, pendingKey(id))
	if !ok {
		return &Decision{Outcome: OutcomeExpired}
	}
	action, ok := value.(*PendingAction)
	if !ok {
		return &Decision{Outcome: OutcomeExpired}
	}

	if action.Owner != owner {
		slog.Warn("confirmation owner mismatch", "id", id, "caller", owner)
		return &Decision{Outcome: OutcomeUnauthorized}
	}

	if g.clock().After(action.ExpiresAt) {
		_ = g.store.Delete(ctx, pendingKey(id))
		return &Decision{Outcome: OutcomeExpired}
	}

	// Take is the single-use barrier: of any racing confirms, exactly one
	// proceeds past this point.
	if _, ok := g.store.Take(ctx, pendingKey(id)); !ok {
		return &Decision{Outcome: OutcomeExpired}
	}

	if !confirmed {
		slog.Info("action cancelled by owner", "action", action.ActionType, "id", id)
		return &Decision{Outcome: OutcomeCancelled}
	}

	result, err := g.runner(ctx, action)
	if err != nil {
		slog.Error("confirmed action failed", "action", action.ActionType, "id", id, "error", err)
		return &Decision{Outcome: OutcomeConfirmed, Err: err.Error()}
	}

	slog.Info("confirmed action executed", "action", action.ActionType, "id", id)
	return &Decision{Outcome: OutcomeConfirmed, Result: result}
}

// Preview renders a short human-readable summary of an action payload.
func Preview(actionType string, payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(actionType)
	for _, k := range keys {
		value := fmt.Sprintf("%v", payload[k])
		if len(value) > 120 {
			value = value[:120] + "..."
		}
		fmt.Fprintf(&b, "\n  %s: %s", k, value)
	}
	return b.String()
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}
