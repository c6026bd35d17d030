package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiranahq/kirana-backend/api/controllers"
	"github.com/kiranahq/kirana-backend/api/middleware"
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
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth          auth.Service
	Shops         shops.Service
	Products      products.Service
	Customers     customers.Service
	Orders        orders.Service
	Subscriptions subscriptions.Service
	Credit        credit.Service
	Coupons       coupons.Service
	Invoices      invoices.Service
	Payments      payments.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginPhoneLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Public storefront behind the printed QR code. No auth: customers
	// browse the catalog straight from a scan.
	r.Route("/api/public", func(r chi.Router) {
		r.Get("/store/{slug}", controllers.Storefront(svcs.Shops, svcs.Products, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Shops, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.ShopContext(logg))

		r.Route("/shop", func(r chi.Router) {
			r.Get("/me", controllers.ShopProfile(svcs.Shops, logg))
			r.Put("/me", controllers.ShopUpdate(svcs.Shops, logg))
			r.Get("/me/settings", controllers.ShopSettings(svcs.Shops, logg))
			r.Put("/me/settings", controllers.ShopSettingsUpdate(svcs.Shops, logg))
			r.Get("/me/qr", controllers.ShopQR(svcs.Shops, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.ProductCreate(svcs.Products, logg))
			r.Get("/", controllers.ProductList(svcs.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(svcs.Products, logg))
			r.Patch("/{productId}", controllers.ProductUpdate(svcs.Products, logg))
			r.Post("/{productId}/stock", controllers.ProductAdjustStock(svcs.Products, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", controllers.CustomerCreate(svcs.Customers, logg))
			r.Get("/", controllers.CustomerList(svcs.Customers, logg))
			r.Get("/{customerId}", controllers.CustomerGet(svcs.Customers, logg))
			r.Patch("/{customerId}", controllers.CustomerUpdate(svcs.Customers, logg))
			r.Get("/{customerId}/credit", controllers.CreditAccountByCustomer(svcs.Credit, logg))
			r.Post("/{customerId}/credit/score", controllers.CreditRefreshScore(svcs.Credit, logg))
			r.Get("/{customerId}/payments", controllers.PaymentListByCustomer(svcs.Payments, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderPlace(svcs.Orders, logg))
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderGet(svcs.Orders, logg))
			r.Post("/{orderId}/status", controllers.OrderUpdateStatus(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(svcs.Subscriptions, logg))
			r.Get("/", controllers.SubscriptionList(svcs.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.SubscriptionGet(svcs.Subscriptions, logg))
			r.Post("/{subscriptionId}/pause", controllers.SubscriptionPause(svcs.Subscriptions, logg))
			r.Post("/{subscriptionId}/resume", controllers.SubscriptionResume(svcs.Subscriptions, logg))
			r.Post("/{subscriptionId}/cancel", controllers.SubscriptionCancel(svcs.Subscriptions, logg))
			r.Get("/{subscriptionId}/deliveries", controllers.SubscriptionDeliveries(svcs.Subscriptions, logg))
		})
		r.Post("/deliveries/{deliveryId}/complete", controllers.DeliveryComplete(svcs.Subscriptions, logg))

		r.Route("/credit", func(r chi.Router) {
			r.Post("/accounts", controllers.CreditAccountCreate(svcs.Credit, logg))
			r.Get("/accounts/{accountId}", controllers.CreditAccountGet(svcs.Credit, logg))
			r.Get("/accounts/{accountId}/transactions", controllers.CreditTransactions(svcs.Credit, logg))
			r.Post("/transactions", controllers.CreditApplyTransaction(svcs.Credit, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/", controllers.CouponCreate(svcs.Coupons, logg))
			r.Get("/", controllers.CouponList(svcs.Coupons, logg))
			r.Get("/{couponId}", controllers.CouponGet(svcs.Coupons, logg))
			r.Post("/{couponId}/deactivate", controllers.CouponDeactivate(svcs.Coupons, logg))
			r.Post("/validate", controllers.CouponValidate(svcs.Coupons, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.InvoiceCreate(svcs.Invoices, logg))
			r.Get("/", controllers.InvoiceList(svcs.Invoices, logg))
			r.Get("/{invoiceId}", controllers.InvoiceGet(svcs.Invoices, logg))
			r.Post("/{invoiceId}/send", controllers.InvoiceSend(svcs.Invoices, logg))
			r.Post("/{invoiceId}/cancel", controllers.InvoiceCancel(svcs.Invoices, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentRecord(svcs.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentGet(svcs.Payments, logg))
			r.Post("/gateway/order", controllers.PaymentGatewayOrder(svcs.Payments, logg))
			r.Post("/gateway/confirm", controllers.PaymentGatewayConfirm(svcs.Payments, logg))
		})
	})

	return r
}
