// This file defines error values shared by the store implementations.
// Sentinel values let higher layers distinguish failure scenarios with
// errors.Is without depending on a concrete store.
package store

import (
	"errors"
	"fmt"
)

// ErrConflict is the sentinel matched by errors.Is when a conditional update
// loses a race: at least one requested ticket was not in the expected status.
var ErrConflict = errors.New("ticket status conflict")

// ErrUnavailable is returned when the backing store cannot be reached.  The
// engine converts it into a stale-snapshot response rather than an outage.
var ErrUnavailable = errors.New("ticket store unavailable")

// ConflictError reports exactly which numbers caused a conditional update to
// fail.  The whole batch is rejected; none of the requested tickets changed.
type ConflictError struct {
	Numbers []int // numbers not in the expected status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %d ticket(s): %v", len(e.Numbers), e.Numbers)
}

// Is makes errors.Is(err, ErrConflict) true for ConflictError values.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
