package inventory

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

// newTestCoordinator wires a coordinator to a stopped broadcaster seeded by
// a single forced refresh, so tests control exactly when state propagates.
func newTestCoordinator(t *testing.T, total int) (*Coordinator, *Ledger, *store.MemoryStore, *Broadcaster) {
	t.Helper()
	st := store.NewMemoryStore(total)
	ledger := NewLedger(st, testTTL, nil, nil, nil)
	t.Cleanup(ledger.Stop)
	agg := NewAggregator(st, total, nil, nil, nil)
	b := NewBroadcaster(agg, st, ScarcityPolicy{}, time.Hour, time.Hour, nil, nil)
	b.ForceRefresh()
	c := NewCoordinator(b, ledger)
	t.Cleanup(c.Close)
	return c, ledger, st, b
}

func TestSelectValidation(t *testing.T) {
	c, _, st, b := newTestCoordinator(t, 20)
	ctx := context.Background()

	if _, err := st.ConditionalUpdate(ctx, []int{5}, model.StatusAvailable, model.StatusSold, "h", "p"); err != nil {
		t.Fatalf("seed sold: %v", err)
	}
	b.ForceRefresh()

	if err := c.Select(0); err == nil {
		t.Error("Select(0) succeeded, want range error")
	}
	if err := c.Select(21); err == nil {
		t.Error("Select(21) succeeded, want range error")
	}
	if err := c.Select(5); !errors.Is(err, ErrAlreadyUnavailable) {
		t.Errorf("Select(sold) = %v, want ErrAlreadyUnavailable", err)
	}
	if err := c.Select(7); err != nil {
		t.Fatalf("Select(7): %v", err)
	}
	// Re-selecting is a no-op, not an error or a duplicate.
	if err := c.Select(7); err != nil {
		t.Fatalf("repeat Select(7): %v", err)
	}
	if got := c.Numbers(); len(got) != 1 || got[0] != 7 {
		t.Errorf("Numbers() = %v, want [7]", got)
	}

	c.Deselect(7)
	if got := c.Numbers(); len(got) != 0 {
		t.Errorf("Numbers() after Deselect = %v, want empty", got)
	}
}

func TestQuickSelect(t *testing.T) {
	c, _, st, b := newTestCoordinator(t, 6)
	ctx := context.Background()

	if _, err := st.ConditionalUpdate(ctx, []int{1, 2, 3}, model.StatusAvailable, model.StatusSold, "h", "p"); err != nil {
		t.Fatalf("seed sold: %v", err)
	}
	b.ForceRefresh()

	if _, err := c.QuickSelect(4); !errors.Is(err, ErrInsufficientAvailability) {
		t.Errorf("QuickSelect(4) = %v, want ErrInsufficientAvailability", err)
	}

	picked, err := c.QuickSelect(3)
	if err != nil {
		t.Fatalf("QuickSelect(3): %v", err)
	}
	if len(picked) != 3 {
		t.Fatalf("picked %v, want 3 numbers", picked)
	}
	for _, n := range picked {
		if n < 4 || n > 6 {
			t.Errorf("picked unavailable number %d", n)
		}
	}
	// The pool is now exhausted from the coordinator's point of view.
	if _, err := c.QuickSelect(1); !errors.Is(err, ErrInsufficientAvailability) {
		t.Errorf("QuickSelect(1) on exhausted pool = %v, want ErrInsufficientAvailability", err)
	}
}

func TestSubmitReservesSelection(t *testing.T) {
	c, _, st, _ := newTestCoordinator(t, 20)
	ctx := context.Background()

	for _, n := range []int{1, 2} {
		if err := c.Select(n); err != nil {
			t.Fatalf("Select(%d): %v", n, err)
		}
	}
	res, err := c.Submit(ctx, "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(res.Numbers) != 2 {
		t.Errorf("reservation numbers = %v, want [1 2]", res.Numbers)
	}
	if got := c.Numbers(); len(got) != 0 {
		t.Errorf("selection after Submit = %v, want cleared", got)
	}
	if counts, _ := st.StatusCounts(ctx); counts.Reserved != 2 {
		t.Errorf("reserved = %d, want 2", counts.Reserved)
	}
}

func TestSubmitLosesRaceRecoverably(t *testing.T) {
	c, ledger, _, _ := newTestCoordinator(t, 20)
	ctx := context.Background()

	for _, n := range []int{1, 2, 3} {
		if err := c.Select(n); err != nil {
			t.Fatalf("Select(%d): %v", n, err)
		}
	}
	// Another holder wins ticket 2 between selection and submit.  No
	// broadcast reaches the coordinator, so its cache is out of date.
	if _, err := ledger.Reserve(ctx, []int{2}, "rival"); err != nil {
		t.Fatalf("rival Reserve: %v", err)
	}

	_, err := c.Submit(ctx, "alice")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Submit error = %v, want *ConflictError", err)
	}
	if len(conflict.Numbers) != 1 || conflict.Numbers[0] != 2 {
		t.Errorf("conflict numbers = %v, want [2]", conflict.Numbers)
	}
	// The lost number is pruned, the rest of the selection survives.
	if got := c.Numbers(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("selection after lost race = %v, want [1 3]", got)
	}
	if err := c.Select(2); !errors.Is(err, ErrAlreadyUnavailable) {
		t.Errorf("re-Select(2) = %v, want ErrAlreadyUnavailable", err)
	}

	// Retrying with the surviving selection succeeds.
	res, err := c.Submit(ctx, "alice")
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if len(res.Numbers) != 2 {
		t.Errorf("retry numbers = %v, want [1 3]", res.Numbers)
	}
}

func TestBroadcastPrunesSelection(t *testing.T) {
	c, ledger, _, b := newTestCoordinator(t, 20)
	ctx := context.Background()

	if err := c.Select(4); err != nil {
		t.Fatalf("Select(4): %v", err)
	}
	if _, err := ledger.Reserve(ctx, []int{4}, "rival"); err != nil {
		t.Fatalf("rival Reserve: %v", err)
	}
	b.ForceRefresh()

	if got := c.Numbers(); len(got) != 0 {
		t.Errorf("selection after broadcast = %v, want pruned", got)
	}
}

func TestQuickPickStateless(t *testing.T) {
	upd := Update{
		Inventory:   InventorySnapshot{Total: 10, Sold: 2, Reserved: 1, Available: 7},
		Unavailable: []int{1, 2, 3},
	}
	rng := rand.New(rand.NewSource(1))

	picked, err := QuickPick(upd, 7, rng)
	if err != nil {
		t.Fatalf("QuickPick: %v", err)
	}
	seen := make(map[int]struct{}, len(picked))
	for _, n := range picked {
		if n <= 3 || n > 10 {
			t.Errorf("picked unavailable number %d", n)
		}
		if _, dup := seen[n]; dup {
			t.Errorf("duplicate pick %d", n)
		}
		seen[n] = struct{}{}
	}

	if _, err := QuickPick(upd, 8, rng); !errors.Is(err, ErrInsufficientAvailability) {
		t.Errorf("QuickPick(8) = %v, want ErrInsufficientAvailability", err)
	}
}
