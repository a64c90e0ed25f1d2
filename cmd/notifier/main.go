package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/rabbit"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/notify"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

const receiptsQueue = "busbook.receipts"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" || cfg.SMTPHost == "" {
		log.Fatal("RABBIT_URL and SMTP_HOST are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "busbook-notifier")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	mailer, err := notify.NewSMTPMailer(cfg)
	if err != nil {
		log.Fatalf("failed to create mailer: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, receiptsQueue, logger, domain.EventBookingApproved)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	notifier := notify.NewNotifier(mailer, logger)
	logger.WithField("queue", receiptsQueue).Info("notifier started")
	if err := consumer.Run(ctx, notifier.HandleDelivery); err != nil {
		logger.WithError(err).Error("notifier stopped")
		return
	}
	logger.Info("notifier exited")
}
