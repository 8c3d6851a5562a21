package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
)

// AdminHandler serves the admin read model: both the real and the display
// layers plus the configured scarcity policy and connection/staleness
// metadata.  Authentication of admin actions is handled outside this
// service (upstream proxy); the handlers themselves are read-only except
// for the force-refresh trigger.
type AdminHandler struct {
	Broadcaster *inventory.Broadcaster
	Ledger      *inventory.Ledger
}

// NewAdminHandler constructs an AdminHandler.  Both dependencies must be
// non-nil.
func NewAdminHandler(b *inventory.Broadcaster, l *inventory.Ledger) *AdminHandler {
	if b == nil || l == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Broadcaster: b, Ledger: l}
}

// adminView projects an update onto the admin shape, exposing both layers.
func (h *AdminHandler) adminView(upd inventory.Update) echo.Map {
	return echo.Map{
		"inventory": echo.Map{
			"total":     upd.Inventory.Total,
			"sold":      upd.Inventory.Sold,
			"reserved":  upd.Inventory.Reserved,
			"available": upd.Inventory.Available,
		},
		"display": echo.Map{
			"display_sold":      upd.Display.DisplaySold,
			"display_available": upd.Display.DisplayAvailable,
			"reserved":          upd.Display.Reserved,
		},
		"policy":              upd.Policy,
		"connection":          upd.Connection,
		"stale":               upd.Inventory.Stale,
		"active_reservations": h.Ledger.ActiveCount(),
		"last_updated":        upd.LastUpdated.Format(time.RFC3339),
	}
}

// GetInventory handles GET /v1/admin/inventory.
func (h *AdminHandler) GetInventory(c echo.Context) error {
	upd, ok := h.Broadcaster.Current()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "inventory not ready"})
	}
	return c.JSON(http.StatusOK, h.adminView(upd))
}

// StreamInventory handles GET /v1/admin/inventory/stream with both layers.
func (h *AdminHandler) StreamInventory(c echo.Context) error {
	return streamUpdates(c, h.Broadcaster, func(upd inventory.Update) interface{} {
		return h.adminView(upd)
	})
}

// ForceRefresh handles POST /v1/admin/refresh.  It recomputes immediately,
// bypassing the debounce window, and returns the freshly published state.
func (h *AdminHandler) ForceRefresh(c echo.Context) error {
	upd := h.Broadcaster.ForceRefresh()
	return c.JSON(http.StatusOK, h.adminView(upd))
}
