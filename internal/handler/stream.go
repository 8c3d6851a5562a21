package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
)

// streamUpdates turns an observer registration into a server-sent event
// stream.  Each event carries a full rendered snapshot, so a client that
// misses a tick (slow reader, dropped buffer slot) self-heals on the next
// publish; no delta bookkeeping is needed on either side.
func streamUpdates(c echo.Context, b *inventory.Broadcaster, render func(inventory.Update) interface{}) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	// Buffered channel decouples the broadcaster from slow clients; a full
	// buffer drops the tick rather than block the engine.
	updates := make(chan inventory.Update, 4)
	cur, has, cancel := b.Subscribe(func(upd inventory.Update) {
		select {
		case updates <- upd:
		default:
		}
	})
	defer cancel()

	writeEvent := func(upd inventory.Update) error {
		payload, err := json.Marshal(render(upd))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	// Send the current state immediately so new observers do not wait for
	// the next tick.
	if has {
		if err := writeEvent(cur); err != nil {
			return nil
		}
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd := <-updates:
			if err := writeEvent(upd); err != nil {
				return nil
			}
		}
	}
}
