package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// defaultChannel is the Redis pub/sub channel carrying ticket change events.
const defaultChannel = "tickets.events"

// Feed pushes committed ticket transitions through Redis pub/sub so that
// every engine process observing the store learns about row changes without
// polling.  Delivery is best effort: Redis pub/sub drops messages for absent
// subscribers, which is acceptable because the broadcaster's fallback poll
// re-derives the full state on a fixed interval.
type Feed struct {
	rdb     *redis.Client
	channel string
}

// NewFeed returns a Feed publishing on the default channel.  A nil Redis
// client yields a nil Feed, which disables change publishing entirely.
func NewFeed(rdb *redis.Client) *Feed {
	if rdb == nil {
		return nil
	}
	return &Feed{rdb: rdb, channel: defaultChannel}
}

// Publish sends the event to the channel.  Failures are logged and swallowed;
// a lost event only delays observers until the next scheduled poll.
func (f *Feed) Publish(ctx context.Context, ev ChangeEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("feed: marshal change event failed: %v", err)
		return
	}
	if err := f.rdb.Publish(ctx, f.channel, body).Err(); err != nil {
		log.Printf("feed: publish change event failed: %v", err)
	}
}

// Subscribe delivers every event received on the channel to fn from a
// background goroutine until the returned cancel function is called.
// Malformed payloads are logged and skipped.  The returned done channel is
// closed when the pub/sub stream stops, including a Redis-side teardown, so
// the caller knows the subscription went quiet and can establish a new one.
func (f *Feed) Subscribe(ctx context.Context, fn func(ChangeEvent)) (func(), <-chan struct{}, error) {
	sub := f.rdb.Subscribe(ctx, f.channel)
	// Force the subscription to be established before returning so callers
	// do not miss events published immediately after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("feed: bad change event payload: %v", err)
				continue
			}
			fn(ev)
		}
	}()
	return func() { _ = sub.Close() }, done, nil
}
