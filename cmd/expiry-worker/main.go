package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/crdb"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/memory"
	redisadapter "github.com/robertarktes/bus-seat-booking/internal/adapters/redis"
	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	"github.com/robertarktes/bus-seat-booking/internal/jobs"
	"github.com/robertarktes/bus-seat-booking/internal/lifecycle"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

type seatCache interface {
	InvalidateSeatMap(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" {
		log.Fatal("CRDB_DSN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "busbook-expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	var cache seatCache = memory.NewSeatCache()
	if cfg.RedisAddr != "" {
		client := redisadapter.NewClient(cfg.RedisAddr)
		defer client.Close()
		cache = redisadapter.NewCache(client)
	}

	// Expiry never reads the catalog.
	engine := lifecycle.New(repo, catalog.NewService(memory.NewCatalog(), logger), logger, cfg.HoldTTL)

	sched, err := jobs.NewScheduler(logger)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	err = sched.Every(ctx, "expire-stale-bookings", cfg.SweepInterval, func(ctx context.Context) error {
		n, err := engine.ExpireStale(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := cache.InvalidateSeatMap(ctx); err != nil {
				logger.WithError(err).Warn("seat map invalidation failed")
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to schedule expiry: %v", err)
	}

	logger.WithField("hold_ttl", cfg.HoldTTL.String()).WithField("interval", cfg.SweepInterval.String()).Info("expiry worker started")
	sched.Start()
	<-ctx.Done()

	logger.Info("shutting down expiry worker")
	if err := sched.Shutdown(); err != nil {
		logger.WithError(err).Error("scheduler shutdown failed")
	}
}
