package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cassiomorais/bluecode/internal/infrastructure/config"
	"github.com/cassiomorais/bluecode/pkg/retry"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the pool and waits for the database to answer. appName shows
// up in pg_stat_activity so api and worker connections can be told apart.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	if appName != "" {
		params["application_name"] = appName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  uint(max(cfg.ConnectRetries, 1)),
		InitialDelay: cfg.ConnectRetryDelay,
		MaxDelay:     10 * time.Second,
	}, func() error {
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
