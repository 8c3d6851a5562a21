package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-inventory-sync/internal/config"
	"github.com/iliyamo/ticket-inventory-sync/internal/handler"
	"github.com/iliyamo/ticket-inventory-sync/internal/middleware"
)

// RegisterRoutes registers the health and metrics endpoints on the provided
// Echo instance.  These carry no business logic and no caching.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the public read model.  The display-layer
// endpoint sits behind the Redis response cache so request bursts during a
// sale land on Redis instead of the engine; the SSE stream is never cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/v1/inventory", p.GetInventory, middleware.ResponseCache(cacheCfg, rdb))
	e.GET("/v1/inventory/stream", p.StreamInventory)
}

// RegisterAdmin registers the admin read model and the force-refresh
// trigger.  These endpoints expose both the real and the display layers
// and are expected to be reachable only through a trusted network path.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler) {
	g := e.Group("/v1/admin")
	g.GET("/inventory", a.GetInventory)
	g.GET("/inventory/stream", a.StreamInventory)
	g.POST("/refresh", a.ForceRefresh)
}

// RegisterReservations registers the reservation lifecycle endpoints.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler) {
	e.POST("/v1/reservations", r.Create)
	e.POST("/v1/reservations/:id/confirm", r.Confirm)
	e.DELETE("/v1/reservations/:id", r.Cancel)
}
