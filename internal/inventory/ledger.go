package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
	"github.com/iliyamo/ticket-inventory-sync/internal/obs"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

// Reason codes attached to release events for observability.
const (
	ReasonExpired   = "expired"   // TTL elapsed, per-reservation timer fired
	ReasonSwept     = "swept"     // TTL elapsed, caught by the periodic sweep
	ReasonCancelled = "cancelled" // user or operator cancelled explicitly
)

// Ledger tracks active reservations: which ticket numbers are held, by whom
// and since when.  Every mutation goes through the store's conditional
// update, so the ledger never claims a ticket the store has not granted.
//
// Expiry runs on two mechanisms that must agree: a per-reservation timer
// with delay equal to the TTL, and an idempotent periodic sweep that frees
// anything the timers missed (timers do not survive a process restart; see
// Recover).  The ledger mutex is held across store I/O, which serializes
// reserve/confirm/expire against each other and removes every
// confirm-versus-expire race by construction.
type Ledger struct {
	store   store.TicketStore
	sink    EventSink    // nullable
	logger  *obs.Logger  // nullable
	metrics *obs.Metrics // nullable
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]model.Reservation
	timers  map[string]*time.Timer

	now func() time.Time
}

// NewLedger constructs a Ledger with the given reservation TTL.  sink,
// logger and metrics may each be nil.
func NewLedger(st store.TicketStore, ttl time.Duration, sink EventSink, logger *obs.Logger, metrics *obs.Metrics) *Ledger {
	return &Ledger{
		store:   st,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		ttl:     ttl,
		entries: make(map[string]model.Reservation),
		timers:  make(map[string]*time.Timer),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reserve atomically transitions every requested number from AVAILABLE to
// RESERVED for holder and records a ledger entry with an expiry timer.
// Semantics are all-or-nothing: if any number is unavailable the whole call
// fails with *ConflictError and no ticket changes state.
func (l *Ledger) Reserve(ctx context.Context, numbers []int, holder string) (model.Reservation, error) {
	if len(numbers) == 0 {
		return model.Reservation{}, fmt.Errorf("no ticket numbers requested")
	}
	if holder == "" {
		return model.Reservation{}, fmt.Errorf("holder is required")
	}
	// Deduplicate while preserving the caller's order.
	unique := make([]int, 0, len(numbers))
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if n <= 0 {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			unique = append(unique, n)
		}
	}
	if len(unique) == 0 {
		return model.Reservation{}, fmt.Errorf("no valid ticket numbers requested")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.store.ConditionalUpdate(ctx, unique, model.StatusAvailable, model.StatusReserved, holder, ""); err != nil {
		l.countReserve(resultOf(err))
		return model.Reservation{}, l.translate("reserve", err)
	}

	now := l.now()
	res := model.Reservation{
		ID:        uuid.NewString(),
		Numbers:   unique,
		Holder:    holder,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	l.entries[res.ID] = res
	l.armTimerLocked(res.ID, l.ttl)
	l.countReserve("success")
	l.gaugeActiveLocked()

	l.emit(ctx, Event{
		Kind:          EventTicketReserved,
		Numbers:       unique,
		Holder:        holder,
		ReservationID: res.ID,
		At:            now,
	})
	l.log("reserve", map[string]interface{}{
		"reservation": res.ID,
		"holder":      holder,
		"count":       len(unique),
		"expires_at":  res.ExpiresAt.Format(time.RFC3339),
	})
	return res, nil
}

// Confirm transitions a reservation's tickets from RESERVED to SOLD,
// recording purchaseID, and removes the ledger entry.  It must succeed at
// most once per reservation: confirming an already-confirmed or
// already-expired reservation fails with ErrReservationNotFound, which the
// caller may treat as a recoverable no-op.
func (l *Ledger) Confirm(ctx context.Context, reservationID, purchaseID string) (model.Reservation, error) {
	if purchaseID == "" {
		return model.Reservation{}, fmt.Errorf("purchase id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.entries[reservationID]
	if !ok {
		l.countConfirm("not_found")
		return model.Reservation{}, ErrReservationNotFound
	}
	if _, err := l.store.ConditionalUpdate(ctx, res.Numbers, model.StatusReserved, model.StatusSold, res.Holder, purchaseID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// The store no longer holds these tickets as RESERVED; the
			// ledger entry is an orphan.  Drop it and report not-found.
			l.dropLocked(reservationID)
			l.countConfirm("not_found")
			return model.Reservation{}, ErrReservationNotFound
		}
		l.countConfirm("unavailable")
		return model.Reservation{}, l.translate("confirm", err)
	}
	l.dropLocked(reservationID)
	l.countConfirm("success")
	l.gaugeActiveLocked()

	l.emit(ctx, Event{
		Kind:          EventTicketSold,
		Numbers:       res.Numbers,
		Holder:        res.Holder,
		ReservationID: res.ID,
		PurchaseID:    purchaseID,
		At:            l.now(),
	})
	l.log("confirm", map[string]interface{}{
		"reservation": res.ID,
		"holder":      res.Holder,
		"purchase":    purchaseID,
		"count":       len(res.Numbers),
	})
	return res, nil
}

// Cancel is the user/operator-triggered release: the reservation's tickets
// revert to AVAILABLE and the entry is removed.  reason is a free-form code
// carried on the ReservationCancelled event for observability; empty means
// "cancelled".
func (l *Ledger) Cancel(ctx context.Context, reservationID, reason string) error {
	if reason == "" {
		reason = ReasonCancelled
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releaseLocked(ctx, reservationID, EventReservationCancelled, reason)
}

// Expire releases a reservation whose TTL elapsed.  It is idempotent: a
// second call (or a call racing the sweep) finds no entry and returns
// ErrReservationNotFound without touching any ticket.
func (l *Ledger) Expire(ctx context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releaseLocked(ctx, reservationID, EventReservationExpired, ReasonExpired)
}

// Sweep releases every entry whose deadline has passed.  It is the
// correctness backstop behind the per-reservation timers: timers are lost
// on process restart, and the sweep must reach the same end state on its
// own.  Returns the number of reservations released.
func (l *Ledger) Sweep(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	var due []string
	for id, res := range l.entries {
		if !res.ExpiresAt.After(now) {
			due = append(due, id)
		}
	}
	released := 0
	for _, id := range due {
		if err := l.releaseLocked(ctx, id, EventReservationExpired, ReasonSwept); err == nil {
			released++
		}
	}
	if released > 0 {
		l.log("sweep", map[string]interface{}{"released": released})
	}
	return released
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (l *Ledger) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(ctx)
		}
	}
}

// Recover rebuilds ledger entries from RESERVED rows found in the store.
// After a restart the in-memory timers are gone; this adopts each orphaned
// reservation (grouped by holder) with its original creation time, so the
// TTL continues from where it left off and the sweep can free anything
// already overdue.  Returns the number of reservations adopted.
func (l *Ledger) Recover(ctx context.Context) (int, error) {
	numbers, err := l.store.UnavailableNumbers(ctx)
	if err != nil {
		return 0, l.translate("recover", err)
	}
	tickets, err := l.store.TicketsByNumbers(ctx, numbers)
	if err != nil {
		return 0, l.translate("recover", err)
	}

	type group struct {
		numbers []int
		since   time.Time
	}
	groups := make(map[string]*group)
	for _, t := range tickets {
		if t.Status != model.StatusReserved || t.Holder == nil {
			continue
		}
		g, ok := groups[*t.Holder]
		if !ok {
			g = &group{}
			groups[*t.Holder] = g
		}
		g.numbers = append(g.numbers, t.Number)
		if t.ReservedAt != nil && (g.since.IsZero() || t.ReservedAt.Before(g.since)) {
			g.since = *t.ReservedAt
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	adopted := 0
	for holder, g := range groups {
		created := g.since
		if created.IsZero() {
			created = now
		}
		res := model.Reservation{
			ID:        uuid.NewString(),
			Numbers:   g.numbers,
			Holder:    holder,
			CreatedAt: created,
			ExpiresAt: created.Add(l.ttl),
		}
		l.entries[res.ID] = res
		remaining := res.ExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		l.armTimerLocked(res.ID, remaining)
		adopted++
	}
	l.gaugeActiveLocked()
	if adopted > 0 {
		l.log("recover", map[string]interface{}{"adopted": adopted})
	}
	return adopted, nil
}

// ActiveCount reports the number of live ledger entries.
func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Get returns a copy of an active reservation.
func (l *Ledger) Get(reservationID string) (model.Reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.entries[reservationID]
	return res, ok
}

// Stop cancels all pending expiry timers.  Entries are left in place; a
// restarted process reclaims them through Recover and the sweep.
func (l *Ledger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

// releaseLocked reverts a reservation's tickets to AVAILABLE and removes the
// entry.  Caller holds l.mu.  A missing entry is ErrReservationNotFound.
func (l *Ledger) releaseLocked(ctx context.Context, reservationID, kind, reason string) error {
	res, ok := l.entries[reservationID]
	if !ok {
		return ErrReservationNotFound
	}
	if _, err := l.store.ConditionalUpdate(ctx, res.Numbers, model.StatusReserved, model.StatusAvailable, "", ""); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Tickets already moved on (e.g. confirmed concurrently in the
			// store).  The entry is stale; drop it without touching rows.
			l.dropLocked(reservationID)
			return ErrReservationNotFound
		}
		return l.translate("release", err)
	}
	l.dropLocked(reservationID)
	if l.metrics != nil {
		l.metrics.ReleaseTotal.WithLabelValues(reason).Inc()
	}
	l.gaugeActiveLocked()
	l.emit(ctx, Event{
		Kind:          kind,
		Numbers:       res.Numbers,
		Holder:        res.Holder,
		ReservationID: res.ID,
		Reason:        reason,
		At:            l.now(),
	})
	l.log("release", map[string]interface{}{
		"reservation": res.ID,
		"holder":      res.Holder,
		"reason":      reason,
		"count":       len(res.Numbers),
	})
	return nil
}

// armTimerLocked schedules automatic expiry.  Caller holds l.mu.
func (l *Ledger) armTimerLocked(reservationID string, delay time.Duration) {
	l.timers[reservationID] = time.AfterFunc(delay, func() {
		// Idempotent against the sweep: whichever runs first wins, the
		// other sees ErrReservationNotFound.
		_ = l.Expire(context.Background(), reservationID)
	})
}

// dropLocked removes an entry and stops its timer.  Caller holds l.mu.
func (l *Ledger) dropLocked(reservationID string) {
	if t, ok := l.timers[reservationID]; ok {
		t.Stop()
		delete(l.timers, reservationID)
	}
	delete(l.entries, reservationID)
}

// translate converts store errors into the engine taxonomy.
func (l *Ledger) translate(op string, err error) error {
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return &ConflictError{Numbers: conflict.Numbers}
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func resultOf(err error) string {
	if errors.Is(err, store.ErrConflict) {
		return "conflict"
	}
	return "unavailable"
}

func (l *Ledger) countReserve(result string) {
	if l.metrics != nil {
		l.metrics.ReserveTotal.WithLabelValues(result).Inc()
	}
}

func (l *Ledger) countConfirm(result string) {
	if l.metrics != nil {
		l.metrics.ConfirmTotal.WithLabelValues(result).Inc()
	}
}

func (l *Ledger) gaugeActiveLocked() {
	if l.metrics != nil {
		l.metrics.ReservationsActive.Set(float64(len(l.entries)))
	}
}

func (l *Ledger) emit(ctx context.Context, ev Event) {
	if l.sink != nil {
		l.sink.Publish(ctx, ev)
	}
}

func (l *Ledger) log(op string, fields map[string]interface{}) {
	if l.logger != nil {
		fields["op"] = op
		l.logger.Info(fields)
	}
}
