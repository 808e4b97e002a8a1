package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/bluecode/internal/bootstrap"
	"github.com/cassiomorais/bluecode/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// metricsAddr serves the worker's /metrics.
const metricsAddr = ":9091"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "bluecode-worker", "bluecode_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := app.NewServices()

	workerCfg := app.Config.Worker
	sweeper := worker.NewSweeper(svc.Transactions, svc.Callbacks, svc.Idempotency, worker.SweeperConfig{
		Interval:    workerCfg.SweepInterval,
		StaleAfter:  workerCfg.StaleAfter,
		BatchSize:   workerCfg.BatchSize,
		Concurrency: workerCfg.Concurrency,
		GiveUpAfter: workerCfg.GiveUpAfter,
	}, app.Metrics, app.Logger)

	app.Logger.Info().
		Dur("interval", workerCfg.SweepInterval).
		Dur("stale_after", workerCfg.StaleAfter).
		Int("batch_size", workerCfg.BatchSize).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Stale transaction sweeper.
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// 2. Metrics endpoint.
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
