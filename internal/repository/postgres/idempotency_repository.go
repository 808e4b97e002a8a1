package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyEntry is the response recorded for an admin request carrying an
// Idempotency-Key. RequestHash fingerprints the body so a reused key with a
// different payload can be told apart from a retry.
type IdempotencyEntry struct {
	Key            string
	RequestHash    string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the entry may no longer be replayed.
func (e *IdempotencyEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get returns nil and no error for unknown or expired keys.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyEntry, error) {
	e := &IdempotencyEntry{}
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT key, request_hash, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys WHERE key = $1 AND expires_at > NOW()`, key,
	).Scan(&e.Key, &e.RequestHash, &e.ResponseBody, &e.ResponseStatus, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return e, nil
}

// Set records the response. An expired row under the same key is replaced; a
// live one is left alone so the first recorded response wins.
func (r *IdempotencyRepository) Set(ctx context.Context, entry *IdempotencyEntry) error {
	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, response_body, response_status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		     request_hash = EXCLUDED.request_hash,
		     response_body = EXCLUDED.response_body,
		     response_status = EXCLUDED.response_status,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 WHERE idempotency_keys.expires_at <= NOW()`,
		entry.Key, entry.RequestHash, entry.ResponseBody, entry.ResponseStatus, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

// Cleanup deletes expired keys and returns how many were removed. The worker
// calls it once per sweep interval.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
