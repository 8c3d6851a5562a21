package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/obs"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

// ConnectionState tracks the store change-feed subscription lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateSubscribed   ConnectionState = "subscribed"
)

// Update is the process-wide state tuple published to observers.  Every
// publish carries the full snapshot pair, never a delta, so an observer
// that misses a tick self-heals on the next one.
type Update struct {
	Inventory   InventorySnapshot `json:"inventory"`
	Display     DisplaySnapshot   `json:"display"`
	Policy      ScarcityPolicy    `json:"policy"`
	Connection  ConnectionState   `json:"connection"`
	LastUpdated time.Time         `json:"last_updated"`
	// Unavailable lists every SOLD or RESERVED number as of this update.
	// The selection coordinator refreshes its local cache from it on every
	// broadcast; it is carried best-effort and may lag the counts by one
	// tick after a store hiccup.
	Unavailable []int `json:"-"`
}

// Observer receives published updates.  Callbacks run synchronously on the
// broadcaster's goroutine and must return quickly.
type Observer func(Update)

// Broadcaster is the single authoritative holder of the latest computed
// state.  It drives recomputation from three triggers: store change events
// debounced by a short coalescing window, a fixed fallback poll, and
// explicit force-refresh requests.  Recomputes never interleave; triggers
// arriving while a pass is in flight collapse into one follow-up pass.
type Broadcaster struct {
	agg     *Aggregator
	store   store.TicketStore
	policy  ScarcityPolicy
	logger  *obs.Logger  // nullable
	metrics *obs.Metrics // nullable

	poll     time.Duration
	debounce time.Duration

	mu        sync.Mutex
	observers map[int]Observer
	nextObs   int
	current   Update
	has       bool
	conn      ConnectionState

	refreshMu sync.Mutex // serializes aggregation passes

	trigger   chan struct{}
	stopc     chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	unsubFeed func()

	now func() time.Time
}

// NewBroadcaster constructs a stopped Broadcaster.  Call Start to begin the
// refresh loop and Stop to tear it down.
func NewBroadcaster(agg *Aggregator, st store.TicketStore, policy ScarcityPolicy, poll, debounce time.Duration, logger *obs.Logger, metrics *obs.Metrics) *Broadcaster {
	if poll <= 0 {
		poll = 15 * time.Second
	}
	if debounce < 0 {
		debounce = 0
	}
	return &Broadcaster{
		agg:       agg,
		store:     st,
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
		poll:      poll,
		debounce:  debounce,
		observers: make(map[int]Observer),
		conn:      StateDisconnected,
		trigger:   make(chan struct{}, 1),
		stopc:     make(chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start performs an initial recompute, subscribes to the store change feed
// (with retry/backoff in the background) and launches the refresh loop.
func (b *Broadcaster) Start() {
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.refresh()

	b.wg.Add(2)
	go b.maintainSubscription()
	go b.run()
}

// Stop cancels the loops and the feed subscription.  Observers stay
// registered; a restarted broadcaster resumes publishing to them.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopc)
		if b.cancel != nil {
			b.cancel()
		}
		b.mu.Lock()
		unsub := b.unsubFeed
		b.unsubFeed = nil
		b.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		b.wg.Wait()
	})
}

// Subscribe registers an observer and returns the current update (if one
// exists) together with a cancel function.  Observers are given full
// snapshots with at-least-once semantics.
func (b *Broadcaster) Subscribe(fn Observer) (Update, bool, func()) {
	b.mu.Lock()
	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn
	cur, has := b.current, b.has
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
	return cur, has, cancel
}

// Current returns the latest published update.
func (b *Broadcaster) Current() (Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.has
}

// Policy returns the configured scarcity policy.
func (b *Broadcaster) Policy() ScarcityPolicy { return b.policy }

// Notify signals that store state changed.  Bursts collapse: the refresh
// loop absorbs every signal inside the debounce window into one pass.
func (b *Broadcaster) Notify() {
	select {
	case b.trigger <- struct{}{}:
	default: // a trigger is already pending; coalesce
	}
}

// ForceRefresh recomputes and publishes immediately, bypassing the debounce
// window.  A scheduled refresh already in flight is not cancelled; both
// complete and the published timestamp is last-write-wins.
func (b *Broadcaster) ForceRefresh() Update {
	return b.refresh()
}

// run is the refresh loop: debounced change triggers plus the fallback poll.
func (b *Broadcaster) run() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopc:
			return
		case <-ticker.C:
			b.refresh()
		case <-b.trigger:
			// Coalescing window: absorb the burst from a multi-row
			// transaction before recomputing once.
			if b.debounce > 0 {
				timer := time.NewTimer(b.debounce)
			drain:
				for {
					select {
					case <-b.stopc:
						timer.Stop()
						return
					case <-b.trigger:
						// absorbed into this pass
					case <-timer.C:
						break drain
					}
				}
			}
			b.refresh()
		}
	}
}

// maintainSubscription walks the per-channel state machine
// Disconnected -> Connecting -> Subscribed, retrying with exponential
// backoff after failures.  An established feed that later goes quiet drops
// the machine back to Disconnected and the walk starts over.
func (b *Broadcaster) maintainSubscription() {
	defer b.wg.Done()
	backoff := time.Second
	for {
		select {
		case <-b.stopc:
			return
		default:
		}
		b.setConnection(StateConnecting)
		unsub, done, err := b.store.Subscribe(b.ctx, func(store.ChangeEvent) { b.Notify() })
		if err != nil {
			b.setConnection(StateDisconnected)
			if b.logger != nil {
				b.logger.Error(map[string]interface{}{
					"op":       "subscribe",
					"error":    err.Error(),
					"retry_in": backoff.String(),
				})
			}
			select {
			case <-b.stopc:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		b.mu.Lock()
		b.unsubFeed = unsub
		b.mu.Unlock()
		b.setConnection(StateSubscribed)
		backoff = time.Second

		// Hold here until the feed stops delivering or the broadcaster is
		// torn down.  A dead feed may have dropped events, so recompute once
		// before walking the state machine back through Connecting.
		select {
		case <-b.stopc:
			return
		case <-done:
		}
		b.mu.Lock()
		unsub = b.unsubFeed
		b.unsubFeed = nil
		b.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		b.setConnection(StateDisconnected)
		if b.logger != nil {
			b.logger.Error(map[string]interface{}{
				"op":    "subscribe",
				"error": "change feed closed",
			})
		}
		b.Notify()
	}
}

// refresh runs one aggregation pass and publishes the result.  The refresh
// mutex guarantees at most one pass at a time; a caller blocked here acts
// as the single coalesced follow-up pass for everything that arrived while
// the previous pass was in flight.
func (b *Broadcaster) refresh() Update {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()

	inv, err := b.agg.Recompute(b.ctxOrBackground())
	now := b.now()
	disp := ApplyOverlay(inv, b.policy, now)

	upd := Update{
		Inventory:   inv,
		Display:     disp,
		Policy:      b.policy,
		LastUpdated: now,
	}
	// The unavailable set rides along best-effort; on failure the previous
	// list is reused so the coordinator keeps a usable cache.
	if err == nil {
		if nums, listErr := b.store.UnavailableNumbers(b.ctxOrBackground()); listErr == nil {
			upd.Unavailable = nums
		}
	}

	b.mu.Lock()
	if err != nil && !b.has {
		// Nothing good has ever been computed; withholding the update keeps
		// clients on "not ready" instead of serving an empty pool.
		upd.Connection = b.conn
		b.mu.Unlock()
		return upd
	}
	if upd.Unavailable == nil {
		upd.Unavailable = b.current.Unavailable
	}
	upd.Connection = b.conn
	b.current = upd
	b.has = true
	fns := make([]Observer, 0, len(b.observers))
	for _, fn := range b.observers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	// Publish synchronously after the recompute; every observer receives
	// the full snapshot tuple.
	for _, fn := range fns {
		fn(upd)
	}
	if b.metrics != nil {
		b.metrics.BroadcastTotal.Inc()
	}
	return upd
}

func (b *Broadcaster) setConnection(s ConnectionState) {
	b.mu.Lock()
	b.conn = s
	b.current.Connection = s
	b.mu.Unlock()
}

// ctxOrBackground covers refreshes requested before Start.
func (b *Broadcaster) ctxOrBackground() context.Context {
	if b.ctx != nil {
		return b.ctx
	}
	return context.Background()
}
