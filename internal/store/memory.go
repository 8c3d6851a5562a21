package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ticket-inventory-sync/internal/model"
)

// MemoryStore is a complete in-process TicketStore.  It backs package tests
// and the "dev" environment, where no MySQL instance is available.  All
// methods are safe for concurrent use; the mutex makes every conditional
// update atomic, mirroring the row locks of the MySQL implementation.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[int]*model.Ticket
	subs    map[int]func(ChangeEvent)
	nextSub int
}

// NewMemoryStore seeds a pool of total tickets, all AVAILABLE.
func NewMemoryStore(total int) *MemoryStore {
	s := &MemoryStore{
		tickets: make(map[int]*model.Ticket, total),
		subs:    make(map[int]func(ChangeEvent)),
	}
	for n := 1; n <= total; n++ {
		s.tickets[n] = &model.Ticket{Number: n, Status: model.StatusAvailable}
	}
	return s
}

// StatusCounts reports SOLD and RESERVED counts.
func (s *MemoryStore) StatusCounts(ctx context.Context) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	for _, t := range s.tickets {
		switch t.Status {
		case model.StatusSold:
			c.Sold++
		case model.StatusReserved:
			c.Reserved++
		}
	}
	return c, nil
}

// ConditionalUpdate applies the same all-or-nothing semantics as the MySQL
// store: if any requested number is missing or not in the expected status,
// nothing changes and a *ConflictError is returned.
func (s *MemoryStore) ConditionalUpdate(ctx context.Context, numbers []int, expected, next model.TicketStatus, holder, purchaseID string) ([]int, error) {
	s.mu.Lock()
	var conflicting []int
	for _, n := range numbers {
		t, ok := s.tickets[n]
		if !ok || t.Status != expected {
			conflicting = append(conflicting, n)
		}
	}
	if len(conflicting) > 0 {
		s.mu.Unlock()
		return nil, &ConflictError{Numbers: conflicting}
	}
	now := time.Now().UTC()
	for _, n := range numbers {
		t := s.tickets[n]
		t.Status = next
		switch next {
		case model.StatusReserved:
			h := holder
			reservedAt := now
			t.Holder = &h
			t.ReservedAt = &reservedAt
			t.PurchaseID = nil
			t.SoldAt = nil
		case model.StatusSold:
			h := holder
			p := purchaseID
			soldAt := now
			t.Holder = &h
			t.PurchaseID = &p
			t.SoldAt = &soldAt
		default:
			t.Holder = nil
			t.PurchaseID = nil
			t.ReservedAt = nil
			t.SoldAt = nil
		}
	}
	fns := make([]func(ChangeEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	ev := ChangeEvent{Numbers: numbers, Status: next, Holder: holder, At: now}
	for _, fn := range fns {
		fn(ev)
	}
	return numbers, nil
}

// UnavailableNumbers lists every number that is not AVAILABLE, ascending.
func (s *MemoryStore) UnavailableNumbers(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var numbers []int
	for n, t := range s.tickets {
		if t.Status != model.StatusAvailable {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}

// TicketsByNumbers returns copies of the requested rows, ascending.
func (s *MemoryStore) TicketsByNumbers(ctx context.Context, numbers []int) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Ticket, 0, len(numbers))
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	for _, n := range sorted {
		if t, ok := s.tickets[n]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Subscribe registers fn for synchronous delivery of change events.  The
// in-process subscription cannot die on its own, so done closes only when
// the caller cancels.
func (s *MemoryStore) Subscribe(ctx context.Context, fn func(ChangeEvent)) (func(), <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		once.Do(func() { close(done) })
	}
	return cancel, done, nil
}
