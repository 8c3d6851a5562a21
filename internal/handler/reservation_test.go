package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

const testSecret = "test-secret"

func newTestEnv(t *testing.T, total int) (*inventory.Ledger, *inventory.Broadcaster) {
	t.Helper()
	st := store.NewMemoryStore(total)
	ledger := inventory.NewLedger(st, 900*time.Second, nil, nil, nil)
	t.Cleanup(ledger.Stop)
	agg := inventory.NewAggregator(st, total, nil, nil, nil)
	b := inventory.NewBroadcaster(agg, st, inventory.ScarcityPolicy{}, time.Hour, time.Hour, nil, nil)
	b.ForceRefresh()
	return ledger, b
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func newTestServer(t *testing.T, total int) (*echo.Echo, *inventory.Ledger, *inventory.Broadcaster) {
	t.Helper()
	ledger, b := newTestEnv(t, total)
	e := echo.New()
	h := NewReservationHandler(ledger, b, testSecret)
	e.POST("/v1/reservations", h.Create)
	e.POST("/v1/reservations/:id/confirm", h.Confirm)
	e.DELETE("/v1/reservations/:id", h.Cancel)
	p := NewPublicHandler(b)
	e.GET("/v1/inventory", p.GetInventory)
	return e, ledger, b
}

func TestCreateConfirmFlow(t *testing.T) {
	e, _, b := newTestServer(t, 100)

	rec, body := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"numbers":[1,2,3],"holder":"H"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", rec.Code, body)
	}
	resID, _ := body["reservation_id"].(string)
	token, _ := body["claim_token"].(string)
	if resID == "" || token == "" {
		t.Fatalf("missing id or token in %v", body)
	}

	rec, body = doJSON(t, e, http.MethodPost, "/v1/reservations/"+resID+"/confirm",
		fmt.Sprintf(`{"purchase_id":"P","token":%q}`, token))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %v", rec.Code, body)
	}
	if body["purchase_id"] != "P" {
		t.Errorf("purchase_id = %v, want P", body["purchase_id"])
	}

	// A second confirm is a 404, not a double sale.
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/reservations/"+resID+"/confirm",
		fmt.Sprintf(`{"purchase_id":"P2","token":%q}`, token))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d, want 404", rec.Code)
	}

	// The public read model reflects the sale after a refresh, without
	// exposing the real sold count field.
	b.ForceRefresh()
	rec, body = doJSON(t, e, http.MethodGet, "/v1/inventory", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("inventory status = %d", rec.Code)
	}
	if _, leaked := body["sold"]; leaked {
		t.Error("public view leaks the real sold count")
	}
	if body["display_sold"].(float64) < 3 {
		t.Errorf("display_sold = %v, want >= 3", body["display_sold"])
	}
}

func TestCreateConflictListsNumbers(t *testing.T) {
	e, ledger, _ := newTestServer(t, 50)

	if _, err := ledger.Reserve(context.Background(), []int{2}, "rival"); err != nil {
		t.Fatalf("rival Reserve: %v", err)
	}

	rec, body := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"numbers":[1,2,3],"holder":"H"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	unavailable, _ := body["unavailable"].([]interface{})
	if len(unavailable) != 1 || unavailable[0].(float64) != 2 {
		t.Errorf("unavailable = %v, want [2]", unavailable)
	}
}

func TestCreateQuickCount(t *testing.T) {
	e, _, _ := newTestServer(t, 10)

	rec, body := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"quick_count":4,"holder":"H"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	numbers, _ := body["numbers"].([]interface{})
	if len(numbers) != 4 {
		t.Errorf("numbers = %v, want 4 picks", numbers)
	}

	// More than the pool holds.
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"quick_count":11,"holder":"H"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("oversized quick pick status = %d, want 409", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	e, _, _ := newTestServer(t, 10)

	rec, _ := doJSON(t, e, http.MethodPost, "/v1/reservations", `{"numbers":[1]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing holder status = %d, want 400", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/reservations", `{"holder":"H"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty request status = %d, want 400", rec.Code)
	}
}

func TestConfirmRejectsBadToken(t *testing.T) {
	e, _, _ := newTestServer(t, 10)

	rec, body := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"numbers":[5],"holder":"H"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	resID := body["reservation_id"].(string)

	rec, _ = doJSON(t, e, http.MethodPost, "/v1/reservations/"+resID+"/confirm",
		`{"purchase_id":"P","token":"garbage"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}

	// A valid token for a different reservation is rejected too.
	rec, other := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"numbers":[6],"holder":"H"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create status = %d", rec.Code)
	}
	otherToken := other["claim_token"].(string)
	rec, _ = doJSON(t, e, http.MethodPost, "/v1/reservations/"+resID+"/confirm",
		fmt.Sprintf(`{"purchase_id":"P","token":%q}`, otherToken))
	if rec.Code != http.StatusForbidden {
		t.Errorf("mismatched token status = %d, want 403", rec.Code)
	}
}

func TestCancelReservation(t *testing.T) {
	e, _, _ := newTestServer(t, 10)

	rec, body := doJSON(t, e, http.MethodPost, "/v1/reservations",
		`{"numbers":[1,2],"holder":"H"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	resID := body["reservation_id"].(string)

	rec, _ = doJSON(t, e, http.MethodDelete, "/v1/reservations/"+resID+"?reason=changed_mind", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d, want 204", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodDelete, "/v1/reservations/"+resID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", rec.Code)
	}
}
