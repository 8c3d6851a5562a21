// Package inventory implements the ticket inventory synchronization engine:
// the inventory aggregator, the scarcity overlay, the reservation ledger,
// the synchronization broadcaster and the selection coordinator.  The
// authoritative ticket state lives in the backing store; this package owns
// the derived, eventually-consistent projection that all observers share.
package inventory

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the engine's failure taxonomy.  All of them are
// recoverable from the caller's perspective; invariant violations are not
// errors at all but diagnostic events (see Event).
var (
	// ErrStoreUnavailable signals a network or store failure.  The engine
	// keeps serving the last known snapshot flagged as stale and retries on
	// the next scheduled tick.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrReservationNotFound is returned when confirm, cancel or expire
	// reference a reservation that no longer exists (already confirmed,
	// already expired, or never created).  Callers treat it as a no-op.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInsufficientAvailability is returned when a quick-select request
	// exceeds the current supply.
	ErrInsufficientAvailability = errors.New("insufficient availability")

	// ErrReservationConflict is the sentinel matched by errors.Is when
	// another holder reserved first.  The concrete error is *ConflictError,
	// which lists the exact numbers lost.
	ErrReservationConflict = errors.New("reservation conflict")

	// ErrAlreadyUnavailable is returned by the selection coordinator when a
	// chosen number is sold or reserved in the latest published snapshot.
	ErrAlreadyUnavailable = errors.New("ticket already unavailable")
)

// ConflictError reports the ticket numbers another holder won.  The caller
// must re-select; none of the requested tickets changed state.
type ConflictError struct {
	Numbers []int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation conflict on %d ticket(s): %v", len(e.Numbers), e.Numbers)
}

// Is makes errors.Is(err, ErrReservationConflict) true for ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrReservationConflict }
