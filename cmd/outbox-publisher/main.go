package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/crdb"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/rabbit"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	"github.com/robertarktes/bus-seat-booking/internal/jobs"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/outbox"
)

const pollInterval = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" || cfg.RabbitURL == "" {
		log.Fatal("CRDB_DSN and RABBIT_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "busbook-outbox-publisher")
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	relay := outbox.NewPublisher(repo, rabbitPub, logger)

	sched, err := jobs.NewScheduler(logger)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	err = sched.Every(ctx, "relay-outbox", pollInterval, func(ctx context.Context) error {
		// Drain the backlog before the next tick.
		for {
			n, err := relay.RunOnce(ctx)
			if err != nil || n == 0 {
				return err
			}
		}
	})
	if err != nil {
		log.Fatalf("failed to schedule outbox relay: %v", err)
	}

	logger.Info("outbox publisher started")
	sched.Start()
	<-ctx.Done()

	logger.Info("shutting down outbox publisher")
	if err := sched.Shutdown(); err != nil {
		logger.WithError(err).Error("scheduler shutdown failed")
	}
}
