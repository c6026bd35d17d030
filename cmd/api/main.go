package main

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/routes"
	"github.com/kiranahq/kirana-backend/internal/auth"
	"github.com/kiranahq/kirana-backend/internal/coupons"
	"github.com/kiranahq/kirana-backend/internal/credit"
	"github.com/kiranahq/kirana-backend/internal/customers"
	"github.com/kiranahq/kirana-backend/internal/invoices"
	"github.com/kiranahq/kirana-backend/internal/orders"
	"github.com/kiranahq/kirana-backend/internal/payments"
	"github.com/kiranahq/kirana-backend/internal/products"
	"github.com/kiranahq/kirana-backend/internal/shops"
	"github.com/kiranahq/kirana-backend/internal/subscriptions"
	"github.com/kiranahq/kirana-backend/pkg/auth/session"
	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/migrate"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
	"github.com/kiranahq/kirana-backend/pkg/razorpay"
	"github.com/kiranahq/kirana-backend/pkg/redis"
)

// ownerShops exposes shop lookup to the auth service without wiring the
// full shop service in both directions.
type ownerShops struct {
	repo shops.Repository
}

func (o ownerShops) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	return o.repo.FindByOwner(ctx, ownerID)
}

type paymentGateway interface {
	CreateOrder(amount decimal.Decimal, receipt string, notes map[string]any) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

// disabledGateway stands in when Razorpay is not configured. Online
// checkouts fail loudly instead of silently recording unpaid rows.
type disabledGateway struct{}

func (disabledGateway) CreateOrder(decimal.Decimal, string, map[string]any) (*razorpay.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not enabled")
}

func (disabledGateway) VerifyPaymentSignature(string, string, string) bool {
	return false
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	authRepo := auth.NewRepository(gormDB)
	shopsRepo := shops.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	customersRepo := customers.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	couponsRepo := coupons.NewRepository(gormDB)
	creditRepo := credit.NewRepository(gormDB)
	invoicesRepo := invoices.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	subscriptionsRepo := subscriptions.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		Repo:           authRepo,
		Shops:          ownerShops{repo: shopsRepo},
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	shopsService, err := shops.NewService(shops.ServiceParams{
		Repo:              shopsRepo,
		Owners:            authService,
		TransactionRunner: dbClient,
		BaseURL:           cfg.App.BaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shop service", err)
		os.Exit(1)
	}

	productsService, err := products.NewService(products.ServiceParams{Repo: productsRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
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

	couponsService, err := coupons.NewService(coupons.ServiceParams{
		Repo:     couponsRepo,
		Settings: shopsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	creditService, err := credit.NewService(credit.ServiceParams{
		Repo:              creditRepo,
		Customers:         customersService,
		Orders:            ordersRepo,
		Settings:          shopsService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credit service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:              ordersRepo,
		Customers:         customersService,
		CustomerStats:     customersService,
		Products:          productsService,
		Coupons:           couponsService,
		Credit:            creditService,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
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

	var gateway paymentGateway = disabledGateway{}
	if cfg.Razorpay.Enabled {
		razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create razorpay client", err)
			os.Exit(1)
		}
		gateway = razorpayClient
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:              paymentsRepo,
		Customers:         customersService,
		Invoices:          invoicesService,
		Credit:            creditService,
		Gateway:           gateway,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Auth:          authService,
			Shops:         shopsService,
			Products:      productsService,
			Customers:     customersService,
			Orders:        ordersService,
			Subscriptions: subscriptionsService,
			Credit:        creditService,
			Coupons:       couponsService,
			Invoices:      invoicesService,
			Payments:      paymentsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
