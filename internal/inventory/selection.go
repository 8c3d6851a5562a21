package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
)

// Coordinator is a client-local, optimistic selection of ticket numbers for
// a single holder.  It validates choices against the latest published
// update (a locally cached set of unavailable numbers, refreshed on every
// broadcast) but its selections are advisory only: the final authority is
// always the store-level conditional update performed by the ledger on
// Submit.  Losing a race is a recoverable condition, never a fatal one.
type Coordinator struct {
	ledger *Ledger
	unsub  func()

	mu          sync.Mutex
	selection   []int // ordered, as picked
	selected    map[int]struct{}
	unavailable map[int]struct{}
	total       int
	available   int

	rng *rand.Rand
}

// NewCoordinator builds a coordinator wired to the broadcaster handle given
// at construction (no ambient lookup).  It seeds its caches from the
// current update and tracks every subsequent broadcast until Close.
func NewCoordinator(b *Broadcaster, ledger *Ledger) *Coordinator {
	c := &Coordinator{
		ledger:      ledger,
		selected:    make(map[int]struct{}),
		unavailable: make(map[int]struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	cur, has, cancel := b.Subscribe(c.apply)
	c.unsub = cancel
	if has {
		c.apply(cur)
	}
	return c
}

// Close detaches the coordinator from the broadcaster.
func (c *Coordinator) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

// apply refreshes the local caches from a broadcast and prunes selected
// numbers that became unavailable underneath us.
func (c *Coordinator) apply(upd Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = upd.Inventory.Total
	c.available = upd.Inventory.Available
	c.unavailable = make(map[int]struct{}, len(upd.Unavailable))
	for _, n := range upd.Unavailable {
		c.unavailable[n] = struct{}{}
	}
	c.pruneLocked()
}

// Select adds a ticket number to the local selection.  It fails with
// ErrAlreadyUnavailable when the number is sold or reserved in the latest
// published state.  Selecting an already-selected number is a no-op.
func (c *Coordinator) Select(number int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if number < 1 || (c.total > 0 && number > c.total) {
		return fmt.Errorf("ticket number %d out of range", number)
	}
	if _, taken := c.unavailable[number]; taken {
		return ErrAlreadyUnavailable
	}
	if _, dup := c.selected[number]; dup {
		return nil
	}
	c.selected[number] = struct{}{}
	c.selection = append(c.selection, number)
	return nil
}

// Deselect removes a number from the selection if present.
func (c *Coordinator) Deselect(number int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(number)
}

// QuickSelect draws count uniform-random numbers from the available set
// without replacement and adds them to the selection.  It fails with
// ErrInsufficientAvailability when fewer than count tickets can be drawn.
func (c *Coordinator) QuickSelect(count int) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	candidates := make([]int, 0, count*2)
	for n := 1; n <= c.total; n++ {
		if _, taken := c.unavailable[n]; taken {
			continue
		}
		if _, dup := c.selected[n]; dup {
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) < count {
		return nil, ErrInsufficientAvailability
	}
	c.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	picked := candidates[:count]
	for _, n := range picked {
		c.selected[n] = struct{}{}
		c.selection = append(c.selection, n)
	}
	return append([]int(nil), picked...), nil
}

// Numbers returns the current selection in pick order.
func (c *Coordinator) Numbers() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.selection...)
}

// Clear resets the selection.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = nil
	c.selected = make(map[int]struct{})
}

// Submit hands the selection to the ledger.  On success the selection is
// cleared and the reservation returned.  When another holder won the race,
// the lost numbers are removed from the selection and a *ConflictError is
// surfaced so the caller can re-select; the rest of the selection is kept.
func (c *Coordinator) Submit(ctx context.Context, holder string) (model.Reservation, error) {
	c.mu.Lock()
	numbers := append([]int(nil), c.selection...)
	c.mu.Unlock()
	if len(numbers) == 0 {
		return model.Reservation{}, fmt.Errorf("selection is empty")
	}

	res, err := c.ledger.Reserve(ctx, numbers, holder)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			c.mu.Lock()
			for _, n := range conflict.Numbers {
				c.removeLocked(n)
				c.unavailable[n] = struct{}{}
			}
			c.mu.Unlock()
		}
		return model.Reservation{}, err
	}
	c.Clear()
	return res, nil
}

// QuickPick is the stateless variant used by the HTTP surface: it draws
// count random available numbers from a published update without touching
// any coordinator state.
func QuickPick(upd Update, count int, rng *rand.Rand) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}
	taken := make(map[int]struct{}, len(upd.Unavailable))
	for _, n := range upd.Unavailable {
		taken[n] = struct{}{}
	}
	candidates := make([]int, 0, count*2)
	for n := 1; n <= upd.Inventory.Total; n++ {
		if _, ok := taken[n]; !ok {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) < count {
		return nil, ErrInsufficientAvailability
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return append([]int(nil), candidates[:count]...), nil
}

// removeLocked drops a number from the ordered selection.  Caller holds c.mu.
func (c *Coordinator) removeLocked(number int) {
	if _, ok := c.selected[number]; !ok {
		return
	}
	delete(c.selected, number)
	for i, n := range c.selection {
		if n == number {
			c.selection = append(c.selection[:i], c.selection[i+1:]...)
			break
		}
	}
}

// pruneLocked drops selected numbers that are no longer available.  Caller
// holds c.mu.
func (c *Coordinator) pruneLocked() {
	for n := range c.selected {
		if _, taken := c.unavailable[n]; taken {
			c.removeLocked(n)
		}
	}
}
