package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/internal/credit"
	"github.com/kiranahq/kirana-backend/internal/cron"
	"github.com/kiranahq/kirana-backend/internal/customers"
	"github.com/kiranahq/kirana-backend/internal/invoices"
	"github.com/kiranahq/kirana-backend/internal/products"
	"github.com/kiranahq/kirana-backend/internal/shops"
	"github.com/kiranahq/kirana-backend/internal/subscriptions"
	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/instance"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/metrics"
	"github.com/kiranahq/kirana-backend/pkg/migrate"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
	"github.com/kiranahq/kirana-backend/pkg/redis"
)

const lockKeyFormat = "kirana:cron-worker:lock:%s"

// noOwnerCreation satisfies the shop service's owner dependency; the cron
// worker never registers shops.
type noOwnerCreation struct{}

func (noOwnerCreation) CreateOwnerTx(context.Context, *gorm.DB, string, string, string) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "owner creation is not available in this worker")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	shopsRepo := shops.NewRepository(gormDB)
	customersRepo := customers.NewRepository(gormDB)
	creditRepo := credit.NewRepository(gormDB)
	invoicesRepo := invoices.NewRepository(gormDB)
	subscriptionsRepo := subscriptions.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)

	shopsService, err := shops.NewService(shops.ServiceParams{
		Repo:              shopsRepo,
		Owners:            noOwnerCreation{},
		TransactionRunner: dbClient,
		BaseURL:           cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shop service", err)
		os.Exit(1)
	}

	customersService, err := customers.NewService(customers.ServiceParams{
		Repo:     customersRepo,
		Settings: shopsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}

	invoicesService, err := invoices.NewService(invoices.ServiceParams{
		Repo:              invoicesRepo,
		Customers:         customersService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	productsService, err := products.NewService(products.ServiceParams{
		Repo: products.NewRepository(gormDB),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptionsRepo,
		Customers:         customersService,
		Products:          productsService,
		Settings:          shopsService,
		Invoices:          invoicesService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	invoiceOverdueJob, err := cron.NewInvoiceOverdueJob(cron.InvoiceOverdueJobParams{
		Logger:   logg,
		Invoices: invoicesService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice overdue job", err)
		os.Exit(1)
	}

	subscriptionCatchUpJob, err := cron.NewSubscriptionCatchUpJob(cron.SubscriptionCatchUpJobParams{
		Logger:        logg,
		Subscriptions: subscriptionsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription catch-up job", err)
		os.Exit(1)
	}

	creditDueJob, err := cron.NewCreditDueJob(cron.CreditDueJobParams{
		Logger:            logg,
		Accounts:          creditRepo,
		Customers:         customersService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credit due job", err)
		os.Exit(1)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Outbox:        outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(
		invoiceOverdueJob,
		subscriptionCatchUpJob,
		creditDueJob,
		outboxRetentionJob,
	)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
