package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory-sync/internal/config"
	"github.com/iliyamo/ticket-inventory-sync/internal/database"
	"github.com/iliyamo/ticket-inventory-sync/internal/handler"
	"github.com/iliyamo/ticket-inventory-sync/internal/inventory"
	"github.com/iliyamo/ticket-inventory-sync/internal/obs"
	"github.com/iliyamo/ticket-inventory-sync/internal/queue"
	"github.com/iliyamo/ticket-inventory-sync/internal/router"
	"github.com/iliyamo/ticket-inventory-sync/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environments set vars directly
	cfg := config.Load()

	logger := obs.NewLogger()
	metrics := obs.NewMetrics()

	rdb := config.NewRedisClient() // may be nil; engine degrades to polling
	if rdb == nil {
		log.Printf("redis unavailable; change feed and response cache disabled")
	}

	// Pick the ticket store: MySQL in real environments, in-memory for dev.
	var ticketStore store.TicketStore
	if cfg.Env == "dev" {
		ticketStore = store.NewMemoryStore(cfg.PoolTotal)
	} else {
		db, err := database.Open(cfg)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema: %v", err)
		}
		if err := store.EnsurePool(ctx, db, cfg.PoolTotal); err != nil {
			log.Fatalf("seed pool: %v", err)
		}
		cancel()
		ticketStore = store.NewMySQLStore(db, store.NewFeed(rdb))
	}

	sink := queue.NewPublisher()

	ledger := inventory.NewLedger(ticketStore, cfg.ReservationTTL, sink, logger, metrics)
	defer ledger.Stop()
	if adopted, err := ledger.Recover(context.Background()); err != nil {
		log.Printf("ledger recover failed: %v", err)
	} else if adopted > 0 {
		log.Printf("ledger adopted %d orphaned reservation(s)", adopted)
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go ledger.RunSweeper(sweepCtx, cfg.SweepInterval)

	agg := inventory.NewAggregator(ticketStore, cfg.PoolTotal, logger, metrics, sink)
	policy := inventory.ScarcityPolicy{
		MinPercent:     cfg.Scarcity.MinPercent,
		DisablePercent: cfg.Scarcity.DisablePercent,
		FixedAdditive:  cfg.Scarcity.FixedAdditive,
		Ramp:           cfg.Scarcity.Ramp,
		StartedAt:      time.Now().UTC(),
	}
	broadcaster := inventory.NewBroadcaster(agg, ticketStore, policy, cfg.PollInterval, cfg.DebounceWindow, logger, metrics)
	broadcaster.Start()
	defer broadcaster.Stop()

	// Background consumer mirrors notifications into logs/notifications.log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e, handler.NewPublicHandler(broadcaster), config.LoadCacheConfig(), rdb)
	router.RegisterAdmin(e, handler.NewAdminHandler(broadcaster, ledger))
	router.RegisterReservations(e, handler.NewReservationHandler(ledger, broadcaster, cfg.TokenSecret))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, pool=%d)", addr, cfg.Env, cfg.PoolTotal)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
