package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/bluecode/internal/bootstrap"
	"github.com/cassiomorais/bluecode/internal/controller"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "bluecode-api", "bluecode")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := app.NewServices()

	router := controller.NewRouter(controller.RouterDeps{
		Pool:           app.Pool,
		RedisClient:    app.Redis,
		Callbacks:      svc.Callbacks,
		Authorizer:     svc.Credentials,
		Checkout:       svc.Checkout,
		Refunds:        svc.Refunds,
		Settings:       svc.Settings,
		Orders:         svc.Orders,
		Idempotency:    svc.Idempotency,
		Catalog:        svc.Catalog,
		Metrics:        app.Metrics,
		Server:         app.Config.Server,
		Auth:           app.Config.Auth,
		IdempotencyTTL: app.Config.Worker.IdempotencyTTL,
		Logger:         app.Logger,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Str("oauth2_redirect_uri", svc.Credentials.RedirectURI()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
