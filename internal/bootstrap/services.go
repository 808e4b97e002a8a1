package bootstrap

import (
	"github.com/cassiomorais/bluecode/internal/application"
	"github.com/cassiomorais/bluecode/internal/application/callback"
	"github.com/cassiomorais/bluecode/internal/application/credential"
	"github.com/cassiomorais/bluecode/internal/application/gateway"
	"github.com/cassiomorais/bluecode/internal/application/messages"
	paymentApp "github.com/cassiomorais/bluecode/internal/application/payment"
	"github.com/cassiomorais/bluecode/internal/application/receipt"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	infraRedis "github.com/cassiomorais/bluecode/internal/infrastructure/redis"
	"github.com/cassiomorais/bluecode/internal/repository/postgres"
	"github.com/cassiomorais/bluecode/pkg/retry"
)

// Services is the application graph shared by the API and the worker.
type Services struct {
	Catalog      messages.Catalog
	Orders       *postgres.OrderStore
	Settings     *postgres.SettingsRepository
	Transactions *postgres.TransactionRepository
	Idempotency  *postgres.IdempotencyRepository

	Credentials *credential.Manager
	Gateway     *gateway.Gateway
	Checkout    *paymentApp.CheckoutService
	Refunds     *paymentApp.RefundService
	Callbacks   *callback.Router
}

// NewServices wires repositories, the provider client and the use cases.
func (a *App) NewServices() *Services {
	cfg := a.Config
	catalog := messages.New(cfg.Shop.Language)
	shop := receipt.Shop{
		Name:   cfg.Shop.Name,
		URL:    cfg.Shop.URL,
		Street: cfg.Shop.Street,
		Zip:    cfg.Shop.Zip,
		City:   cfg.Shop.City,
	}

	orders := postgres.NewOrderStore(a.Pool)
	settingsRepo := postgres.NewSettingsRepository(a.Pool)
	txRepo := postgres.NewTransactionRepository(a.Pool)
	txManager := postgres.NewTxManager(a.Pool)

	locks := infraRedis.NewLockManager(a.Redis, cfg.Bluecode.LockTTL, a.Logger)
	states := infraRedis.NewOAuthStateStore(a.Redis)
	verdicts := infraRedis.NewVerdictProducer(a.Redis)

	client := bluecode.NewClient(cfg.Bluecode, a.Logger, a.Metrics)
	credentials := credential.NewManager(
		settingsRepo, settingsRepo, client, states,
		cfg.Server.PublicBaseURL, a.Metrics, a.Logger,
		credential.WithLocker(locks),
		credential.WithStateTTL(cfg.Bluecode.OAuthStateTTL),
	)
	gw := gateway.New(settingsRepo, credentials, client, retry.Config{
		MaxAttempts:  cfg.Bluecode.StatusRetries,
		InitialDelay: cfg.Bluecode.StatusRetryDelay,
		MaxDelay:     cfg.Bluecode.StatusRetryDelay * 4,
	}, a.Logger)

	reconciler := paymentApp.NewReconciler(gw, application.SystemClock{}, catalog, a.Metrics, a.Logger)

	return &Services{
		Catalog:      catalog,
		Orders:       orders,
		Settings:     settingsRepo,
		Transactions: txRepo,
		Idempotency:  postgres.NewIdempotencyRepository(a.Pool),
		Credentials:  credentials,
		Gateway:      gw,
		Checkout: paymentApp.NewCheckoutService(
			orders, txRepo, txManager, gw, reconciler,
			paymentApp.CheckoutConfig{PublicBaseURL: cfg.Server.PublicBaseURL, Shop: shop},
			catalog, a.Logger,
		),
		Refunds: paymentApp.NewRefundService(orders, gw, catalog, a.Metrics, a.Logger),
		Callbacks: callback.NewRouter(
			orders, txRepo, gw, locks, shop, catalog, a.Metrics, a.Logger,
			callback.WithEvents(verdicts),
		),
	}
}
