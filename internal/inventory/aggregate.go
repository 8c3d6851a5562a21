package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/obs"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

// Aggregator computes the authoritative InventorySnapshot from store counts.
// Only sold and reserved are queried; available is always derived, which is
// itself the defense against double counting.  The aggregator remembers the
// last good snapshot so that a store outage degrades to stale data instead
// of blocking callers.
type Aggregator struct {
	store   store.TicketStore
	total   int
	logger  *obs.Logger  // nullable
	metrics *obs.Metrics // nullable
	sink    EventSink    // nullable

	mu   sync.Mutex
	last InventorySnapshot
	has  bool

	now func() time.Time
}

// NewAggregator constructs an Aggregator over the given store and pool size.
// logger, metrics and sink may each be nil.
func NewAggregator(st store.TicketStore, total int, logger *obs.Logger, metrics *obs.Metrics, sink EventSink) *Aggregator {
	return &Aggregator{
		store:   st,
		total:   total,
		logger:  logger,
		metrics: metrics,
		sink:    sink,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Total returns the fixed pool size.
func (a *Aggregator) Total() int { return a.total }

// Recompute queries the store and derives a fresh snapshot.  On store
// failure it returns the last known snapshot with Stale set, together with
// an error wrapping ErrStoreUnavailable; callers are expected to publish
// the stale snapshot rather than freeze.  An invariant violation is
// reported as a MathIntegrityViolation event and the best-known snapshot is
// still returned, never an error.
func (a *Aggregator) Recompute(ctx context.Context) (InventorySnapshot, error) {
	start := time.Now()
	counts, err := a.store.StatusCounts(ctx)
	if err != nil {
		a.mu.Lock()
		snap := a.last
		if !a.has {
			// No good snapshot exists yet.  Carry the pool size so a
			// cold-start outage does not read as an empty pool.
			snap.Total = a.total
		}
		a.mu.Unlock()
		snap.Stale = true
		if a.metrics != nil {
			a.metrics.RecomputeTotal.WithLabelValues("stale").Inc()
			a.metrics.SnapshotStale.Set(1)
		}
		if a.logger != nil {
			a.logger.Error(map[string]interface{}{
				"op":    "recompute",
				"error": err.Error(),
				"stale": true,
			})
		}
		return snap, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	snap := InventorySnapshot{
		Total:      a.total,
		Sold:       counts.Sold,
		Reserved:   counts.Reserved,
		Available:  a.total - counts.Sold - counts.Reserved,
		ComputedAt: a.now(),
	}
	if invErr := snap.CheckInvariant(); invErr != nil {
		// Non-fatal: surface the diagnostic and publish anyway, because a
		// frozen inventory is worse than a suspect one.
		if a.metrics != nil {
			a.metrics.IntegrityTotal.Inc()
		}
		if a.logger != nil {
			a.logger.Error(map[string]interface{}{
				"op":    "recompute",
				"event": EventMathIntegrityViolation,
				"error": invErr.Error(),
			})
		}
		if a.sink != nil {
			a.sink.Publish(ctx, Event{
				Kind:   EventMathIntegrityViolation,
				Reason: invErr.Error(),
				At:     snap.ComputedAt,
			})
		}
	}

	a.mu.Lock()
	a.last = snap
	a.has = true
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.RecomputeTotal.WithLabelValues("success").Inc()
		a.metrics.SnapshotStale.Set(0)
		a.metrics.RecomputeLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	}
	return snap, nil
}

// Last returns the most recent snapshot, if any recompute has succeeded.
func (a *Aggregator) Last() (InventorySnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.has
}
