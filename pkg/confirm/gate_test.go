package confirm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/kvstore"
)

func newTestGate(runner ActionRunner) (*Gate, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	gate := NewGate(kvstore.NewMemoryStoreWithClock(clock), runner, 5*time.Minute)
	gate.clock = clock
	return gate, &now
}

func TestGate_PrepareThenConfirm(t *testing.T) {
	var executed *PendingAction
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		executed = action
		return "sent", nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", map[string]any{"to": "a@b.com", "subject": "hi"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if receipt.ConfirmationID == "" {
		t.Fatal("expected non-empty confirmation id")
	}
	if !strings.Contains(receipt.Preview, "a@b.com") {
		t.Errorf("preview %q missing recipient", receipt.Preview)
	}
	if executed != nil {
		t.Fatal("action executed before confirmation")
	}

	decision := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true)
	if decision.Outcome != OutcomeConfirmed {
		t.Fatalf("Outcome = %s, want confirmed", decision.Outcome)
	}
	if decision.Result != "sent" {
		t.Errorf("Result = %v, want sent", decision.Result)
	}
	if executed == nil || executed.ActionType != "send_email" {
		t.Errorf("runner received %+v", executed)
	}
}

func TestGate_ConfirmIsSingleUse(t *testing.T) {
	var calls int
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		calls++
		return nil, nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome != OutcomeConfirmed {
		t.Fatalf("first confirm outcome = %s", d.Outcome)
	}
	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome != OutcomeExpired {
		t.Fatalf("second confirm outcome = %s, want expired", d.Outcome)
	}
	if calls != 1 {
		t.Errorf("runner called %d times, want 1", calls)
	}
}

func TestGate_ConfirmWrongOwner(t *testing.T) {
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		t.Fatal("runner must not run for wrong owner")
		return nil, nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-2", true); d.Outcome != OutcomeUnauthorized {
		t.Fatalf("outcome = %s, want unauthorized", d.Outcome)
	}

	// The record survives for the rightful owner.
	gate.runner = func(ctx context.Context, action *PendingAction) (any, error) { return "ok", nil }
	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome != OutcomeConfirmed {
		t.Fatalf("rightful owner outcome = %s, want confirmed", d.Outcome)
	}
}

func TestGate_ConfirmAfterExpiry(t *testing.T) {
	gate, now := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		t.Fatal("runner must not run after expiry")
		return nil, nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "create_calendar_event", nil)
	if err != nil {
		t.Fatal(err)
	}

	*now = now.Add(6 * time.Minute)

	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome != OutcomeExpired {
		t.Fatalf("outcome = %s, want expired", d.Outcome)
	}
}

func TestGate_Cancel(t *testing.T) {
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		t.Fatal("runner must not run on cancel")
		return nil, nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", false); d.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", d.Outcome)
	}
	// Cancel consumes the record like confirm does.
	if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome != OutcomeExpired {
		t.Fatalf("outcome after cancel = %s, want expired", d.Outcome)
	}
}

func TestGate_PrepareSweepsExpiredRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := kvstore.NewMemoryStoreWithClock(clock)
	gate := NewGate(store, func(ctx context.Context, action *PendingAction) (any, error) {
		return nil, nil
	}, 5*time.Minute)
	gate.clock = clock
	ctx := context.Background()

	if _, err := gate.Prepare(ctx, "user-1", "send_email", nil); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("store entries = %d, want 1", store.Len())
	}

	now = now.Add(6 * time.Minute)

	// The next prepare purges the expired record; only the fresh one
	// remains in the store.
	if _, err := gate.Prepare(ctx, "user-1", "send_email", nil); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("store entries after sweep = %d, want 1", store.Len())
	}
}

func TestGate_ConcurrentConfirms(t *testing.T) {
	var calls atomic.Int32
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	const racers = 16
	var confirmed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d.Outcome == OutcomeConfirmed {
				confirmed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if confirmed.Load() != 1 {
		t.Errorf("confirmed winners = %d, want exactly 1", confirmed.Load())
	}
	if calls.Load() != 1 {
		t.Errorf("runner calls = %d, want exactly 1", calls.Load())
	}
}

func TestGate_RunnerFailureStillConsumes(t *testing.T) {
	gate, _ := newTestGate(func(ctx context.Context, action *PendingAction) (any, error) {
		return nil, errors.New("smtp unavailable")
	})
	ctx := context.Background()

	receipt, err := gate.Prepare(ctx, "user-1", "send_email", nil)
	if err != nil {
		t.Fatal(err)
	}

	d := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true)
	if d.Outcome != OutcomeConfirmed || d.Err == "" {
		t.Fatalf("decision = %+v, want confirmed with error", d)
	}
	if d2 := gate.Confirm(ctx, receipt.ConfirmationID, "user-1", true); d2.Outcome != OutcomeExpired {
		t.Fatalf("retry outcome = %s, want expired", d2.Outcome)
	}
}
