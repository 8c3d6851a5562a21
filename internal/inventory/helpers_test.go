package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (s *recordingSink) lastOfKind(kind string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Kind == kind {
			return s.events[i], true
		}
	}
	return Event{}, false
}

// flakyStore wraps a TicketStore and fails reads on demand, simulating a
// store outage.
type flakyStore struct {
	store.TicketStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *flakyStore) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *flakyStore) StatusCounts(ctx context.Context) (store.Counts, error) {
	if f.failing() {
		return store.Counts{}, fmt.Errorf("%w: connection refused", store.ErrUnavailable)
	}
	return f.TicketStore.StatusCounts(ctx)
}

func (f *flakyStore) UnavailableNumbers(ctx context.Context) ([]int, error) {
	if f.failing() {
		return nil, fmt.Errorf("%w: connection refused", store.ErrUnavailable)
	}
	return f.TicketStore.UnavailableNumbers(ctx)
}

// feedStore wraps a MemoryStore with a subscription that can be refused or
// torn down mid-flight, standing in for a pub/sub channel that drops.
type feedStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	refuse  int // attempts to reject before accepting
	tries   int
	current chan struct{}
}

func (s *feedStore) Subscribe(ctx context.Context, fn func(store.ChangeEvent)) (func(), <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.refuse > 0 {
		s.refuse--
		return nil, nil, fmt.Errorf("%w: subscribe refused", store.ErrUnavailable)
	}
	cancel, _, err := s.MemoryStore.Subscribe(ctx, fn)
	if err != nil {
		return nil, nil, err
	}
	s.current = make(chan struct{})
	return cancel, s.current, nil
}

// dropFeed simulates the live subscription dying underneath its consumer.
func (s *feedStore) dropFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		close(s.current)
		s.current = nil
	}
}

func (s *feedStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tries
}

// corruptStore reports fixed, impossible counts to exercise the integrity
// diagnostic path.
type corruptStore struct {
	store.TicketStore
	counts store.Counts
}

func (c *corruptStore) StatusCounts(ctx context.Context) (store.Counts, error) {
	return c.counts, nil
}
