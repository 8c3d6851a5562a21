package inventory

import (
	"context"
	"time"
)

// Event kinds emitted to the notification sink.
const (
	EventTicketReserved         = "TicketReserved"
	EventTicketSold             = "TicketSold"
	EventReservationExpired     = "ReservationExpired"
	EventReservationCancelled   = "ReservationCancelled"
	EventMathIntegrityViolation = "MathIntegrityViolation"
)

// Event is a domain notification produced by the engine for external
// consumers (toasts, logs, analytics).  MathIntegrityViolation is the one
// diagnostic kind: it reports a broken closed-form invariant without ever
// crashing the engine, since a frozen inventory is worse than a stale one.
type Event struct {
	Kind          string    `json:"kind"`
	Numbers       []int     `json:"numbers,omitempty"`
	Holder        string    `json:"holder,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	PurchaseID    string    `json:"purchase_id,omitempty"`
	Reason        string    `json:"reason,omitempty"` // cancel reason code, violation detail
	At            time.Time `json:"at"`
}

// EventSink receives engine events.  Implementations must not block the
// engine for long and must swallow their own delivery failures; event
// delivery is best effort on top of the authoritative store state.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}
