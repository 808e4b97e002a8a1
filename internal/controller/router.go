package controller

import (
	"time"

	"github.com/cassiomorais/bluecode/internal/application/messages"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/infrastructure/config"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/bluecode/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client

	Callbacks   CallbackHandler
	Authorizer  Authorizer
	Checkout    Checkout
	Refunds     Refunder
	Settings    settings.Store
	Orders      OrderHistory
	Idempotency customMW.IdempotencyStore

	Catalog        messages.Catalog
	Metrics        *observability.Metrics
	Server         config.ServerConfig
	Auth           config.AuthConfig
	IdempotencyTTL time.Duration
	Logger         zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	// Checkout requests block while the payment is polled.
	if deps.Server.WriteTimeout > 0 {
		r.Use(chimw.Timeout(deps.Server.WriteTimeout))
	}
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	callbackH := NewCallbackController(deps.Callbacks, deps.Authorizer, deps.Catalog, deps.Logger)
	checkoutH := NewCheckoutController(deps.Checkout, deps.Settings)
	adminH := NewAdminController(deps.Authorizer, deps.Settings, deps.Refunds, deps.Orders)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks: buyer redirects, notifications and the OAuth2 return.
	limited := r.With()
	if deps.Server.RateLimit > 0 {
		limited = r.With(customMW.RateLimit(deps.Server.RateLimit))
	}
	limited.HandleFunc("/api/bluecode", callbackH.Dispatch)

	limited.Route("/api/v1", func(r chi.Router) {

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/orders/{id}/process", checkoutH.Process)
			r.Post("/init-payment", checkoutH.InitPayment)
			r.Get("/availability", checkoutH.Availability)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(customMW.RequireRole(deps.Auth.JWTSecret, customMW.AdminRole))

			r.Post("/oauth2/authorize-url", adminH.AuthorizeURL)
			r.Get("/settings", adminH.GetSettings)
			r.Put("/settings", adminH.UpdateSettings)
			r.Get("/orders/{id}", adminH.GetOrder)

			refund := r.With()
			if deps.Idempotency != nil {
				refund = r.With(customMW.Idempotency(deps.Idempotency, deps.IdempotencyTTL))
			}
			refund.Post("/orders/{id}/refund", adminH.Refund)
		})
	})

	return r
}
