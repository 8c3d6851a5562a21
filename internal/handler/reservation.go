package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
	"github.com/iliyamo/ticket-inventory-sync/internal/utils"
)

// ReservationHandler exposes the reservation lifecycle over HTTP: reserve
// (by explicit numbers or quick pick), confirm with a purchase reference,
// and cancel.  The ledger is the authority; the handler only translates
// the engine's error taxonomy into status codes.  Every failure here is
// recoverable from the client's perspective: conflicts mean re-select,
// not retry-forever.
type ReservationHandler struct {
	Ledger      *inventory.Ledger
	Broadcaster *inventory.Broadcaster
	TokenSecret string
}

// NewReservationHandler constructs a ReservationHandler.  Dependencies must
// be non-nil and the secret non-empty.
func NewReservationHandler(l *inventory.Ledger, b *inventory.Broadcaster, secret string) *ReservationHandler {
	if l == nil || b == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Ledger: l, Broadcaster: b, TokenSecret: secret}
}

// Create handles POST /v1/reservations.  The body carries either an
// explicit "numbers" array or a "quick_count" for a random draw, plus the
// holder identity.  On success it returns 201 with the reservation id, the
// granted numbers, the expiry and a signed claim token for confirm.  A lost
// race returns 409 listing exactly the conflicting numbers.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body struct {
		Numbers    []int  `json:"numbers"`
		QuickCount int    `json:"quick_count"`
		Holder     string `json:"holder"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Holder == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder is required"})
	}
	if len(body.Numbers) == 0 && body.QuickCount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "numbers or quick_count is required"})
	}

	numbers := body.Numbers
	if len(numbers) == 0 {
		upd, ok := h.Broadcaster.Current()
		if !ok {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "inventory not ready"})
		}
		picked, err := inventory.QuickPick(upd, body.QuickCount, nil)
		if err != nil {
			if errors.Is(err, inventory.ErrInsufficientAvailability) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient availability"})
			}
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		numbers = picked
	}

	res, err := h.Ledger.Reserve(c.Request().Context(), numbers, body.Holder)
	if err != nil {
		var conflict *inventory.ConflictError
		if errors.As(err, &conflict) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some tickets are unavailable",
				"unavailable": conflict.Numbers,
			})
		}
		if errors.Is(err, inventory.ErrStoreUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	h.Broadcaster.Notify()

	token, err := utils.NewReservationToken(h.TokenSecret, res.ID, res.Holder, res.ExpiresAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to sign claim token"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ID,
		"numbers":        res.Numbers,
		"holder":         res.Holder,
		"expires_at":     res.ExpiresAt.Format(time.RFC3339),
		"claim_token":    token,
	})
}

// Confirm handles POST /v1/reservations/:id/confirm.  The body must carry
// the purchase reference and the claim token issued on reserve.  Confirming
// a reservation that already expired or was already confirmed returns 404,
// a recoverable no-op for the caller.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		PurchaseID string `json:"purchase_id"`
		Token      string `json:"token"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PurchaseID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "purchase_id is required"})
	}
	tokenID, _, err := utils.ParseReservationToken(h.TokenSecret, body.Token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claim token"})
	}
	if tokenID != reservationID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "claim token does not match reservation"})
	}

	res, err := h.Ledger.Confirm(c.Request().Context(), reservationID, body.PurchaseID)
	if err != nil {
		if errors.Is(err, inventory.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		if errors.Is(err, inventory.ErrStoreUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	h.Broadcaster.Notify()

	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": res.ID,
		"purchase_id":    body.PurchaseID,
		"numbers":        res.Numbers,
		"holder":         res.Holder,
	})
}

// Cancel handles DELETE /v1/reservations/:id.  An optional ?reason= query
// parameter is recorded on the cancellation event for observability.
// Returns 204 on success and 404 when the reservation no longer exists.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	err := h.Ledger.Cancel(c.Request().Context(), reservationID, c.QueryParam("reason"))
	if err != nil {
		if errors.Is(err, inventory.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		if errors.Is(err, inventory.ErrStoreUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	h.Broadcaster.Notify()
	return c.NoContent(http.StatusNoContent)
}
