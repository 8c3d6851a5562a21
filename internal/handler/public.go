package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
)

// PublicHandler serves the public read model.  It exposes only the display
// layer and the reserved count, never the real sold count, so the
// scarcity mechanism's internals cannot leak through this surface.
type PublicHandler struct {
	Broadcaster *inventory.Broadcaster
}

// NewPublicHandler constructs a PublicHandler bound to the broadcaster.
func NewPublicHandler(b *inventory.Broadcaster) *PublicHandler {
	if b == nil {
		panic("nil broadcaster passed to NewPublicHandler")
	}
	return &PublicHandler{Broadcaster: b}
}

// publicView projects an update onto the public shape.
func publicView(upd inventory.Update) echo.Map {
	return echo.Map{
		"total":             upd.Display.Total,
		"display_sold":      upd.Display.DisplaySold,
		"display_available": upd.Display.DisplayAvailable,
		"reserved":          upd.Display.Reserved,
		"stale":             upd.Inventory.Stale,
		"last_updated":      upd.LastUpdated.Format(time.RFC3339),
	}
}

// GetInventory handles GET /v1/inventory.  The engine always answers with a
// snapshot, possibly stale and flagged as such; it never blocks a reader on
// a transient store failure.
func (h *PublicHandler) GetInventory(c echo.Context) error {
	upd, ok := h.Broadcaster.Current()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "inventory not ready"})
	}
	return c.JSON(http.StatusOK, publicView(upd))
}

// StreamInventory handles GET /v1/inventory/stream.  It pushes the public
// projection of every broadcast as a server-sent event.
func (h *PublicHandler) StreamInventory(c echo.Context) error {
	return streamUpdates(c, h.Broadcaster, func(upd inventory.Update) interface{} {
		return publicView(upd)
	})
}
