// Package store implements the ticket store client: the authoritative
// backing store for the fixed ticket pool.  Two implementations exist, a
// MySQL-backed store for production and an in-memory store for tests and dev
// runs.  Both provide the same conditional-update semantics: a batch status
// transition either applies to every requested number or to none.
package store

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
)

// Counts carries the status counts reported by the store.  Available is
// never queried from the store; it is always derived as total - sold -
// reserved by the aggregator.
type Counts struct {
	Sold     int // tickets in SOLD status
	Reserved int // tickets in RESERVED status
}

// ChangeEvent describes a committed status transition.  The store publishes
// one event per successful mutation; subscribers use it to trigger
// recomputation.  Events are advisory: a missed event is covered by the
// broadcaster's fallback poll.
type ChangeEvent struct {
	Numbers []int              `json:"numbers"` // affected ticket numbers
	Status  model.TicketStatus `json:"status"`  // status the tickets moved to
	Holder  string             `json:"holder,omitempty"`
	At      time.Time          `json:"at"` // commit time (UTC)
}

// TicketStore is the client interface consumed by the inventory engine.
type TicketStore interface {
	// StatusCounts reports how many tickets are currently SOLD and RESERVED.
	StatusCounts(ctx context.Context) (Counts, error)

	// ConditionalUpdate transitions every number whose current status is
	// expected to next, atomically.  holder is recorded on the rows for
	// RESERVED and SOLD transitions and cleared otherwise; purchaseID is
	// recorded only on transitions to SOLD.  If any requested number is not
	// in the expected status, no row changes and a *ConflictError listing
	// the offending numbers is returned.  On success the updated numbers
	// (equal to the request) are returned.
	ConditionalUpdate(ctx context.Context, numbers []int, expected, next model.TicketStatus, holder, purchaseID string) ([]int, error)

	// UnavailableNumbers lists every number currently SOLD or RESERVED.
	// The selection coordinator refreshes its local cache from this.
	UnavailableNumbers(ctx context.Context) ([]int, error)

	// TicketsByNumbers fetches full ticket rows for the given numbers.
	TicketsByNumbers(ctx context.Context, numbers []int) ([]model.Ticket, error)

	// Subscribe registers fn to receive change events until the returned
	// cancel function is called.  Delivery is at-least-once at best; the
	// caller must tolerate missed and duplicate events.  The done channel is
	// closed once the subscription stops delivering, whether cancelled or
	// torn down underneath, so callers can resubscribe.
	Subscribe(ctx context.Context, fn func(ChangeEvent)) (func(), <-chan struct{}, error)
}
