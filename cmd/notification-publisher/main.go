package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiranahq/kirana-backend/internal/notifications"
	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/instance"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/metrics"
	"github.com/kiranahq/kirana-backend/pkg/migrate"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
	"github.com/kiranahq/kirana-backend/pkg/whatsapp"
)

// logSender stands in for the WhatsApp Cloud API when sending is disabled.
// Messages are logged and marked published so local stacks drain the outbox.
type logSender struct {
	logg *logger.Logger
}

func (s logSender) Send(ctx context.Context, msg whatsapp.Message) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":   msg.To,
		"body": msg.Body,
	}), "whatsapp sending disabled, dropping message")
	return nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "notification-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "notification-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	publisher, err := notifications.NewPublisher(notifications.PublisherParams{
		Source:      outbox.NewRepository(dbClient.DB()),
		Sender:      buildSender(cfg, logg),
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification publisher", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Publisher:    publisher,
		PollInterval: cfg.Outbox.PollInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create publisher service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting notification publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notification publisher shutting down gracefully")
}

func buildSender(cfg *config.Config, logg *logger.Logger) notifications.Sender {
	if !cfg.WhatsApp.Enabled {
		return logSender{logg: logg}
	}
	client, err := whatsapp.NewClient(cfg.WhatsApp)
	if err != nil {
		logg.Error(context.Background(), "failed to create whatsapp client", err)
		os.Exit(1)
	}
	return client
}
