package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, merchant_tx_id, order_id, state, checkin_code, acquirer_tx_id,
	ttl_ms, poll_interval_ms, result_code, error_code, created_at, updated_at, completed_at`

var openStates = []string{string(transaction.StateNew), string(transaction.StateRegistered), string(transaction.StateProcessing)}

// TransactionRepository implements transaction.Repository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new transaction. merchant_tx_id is unique.
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO bluecode_transactions (`+transactionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		tx.ID, tx.MerchantTxID, tx.OrderID, string(tx.State), tx.CheckinCode, tx.AcquirerTxID,
		tx.TTL.Milliseconds(), tx.PollInterval.Milliseconds(), tx.ResultCode, tx.ErrorCode,
		tx.CreatedAt, tx.UpdatedAt, tx.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrTransactionExists
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByMerchantTxID(ctx context.Context, merchantTxID string) (*transaction.Transaction, error) {
	return scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM bluecode_transactions WHERE merchant_tx_id = $1`+forUpdate(ctx), merchantTxID))
}

func (r *TransactionRepository) GetByOrderID(ctx context.Context, orderID int64) (*transaction.Transaction, error) {
	return scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM bluecode_transactions
		 WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE bluecode_transactions SET
		  state=$1, checkin_code=$2, acquirer_tx_id=$3, ttl_ms=$4, poll_interval_ms=$5,
		  result_code=$6, error_code=$7, updated_at=$8, completed_at=$9
		 WHERE merchant_tx_id=$10`,
		string(tx.State), tx.CheckinCode, tx.AcquirerTxID, tx.TTL.Milliseconds(), tx.PollInterval.Milliseconds(),
		tx.ResultCode, tx.ErrorCode, tx.UpdatedAt, tx.CompletedAt, tx.MerchantTxID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrTransactionNotFound
	}
	return nil
}

// ListStale lists open transactions untouched since olderThan, oldest first.
func (r *TransactionRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM bluecode_transactions
		 WHERE state = ANY($1) AND updated_at < $2
		 ORDER BY updated_at ASC LIMIT $3`,
		openStates, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Touch records that the transaction was checked, which moves it to the back
// of the ListStale queue.
func (r *TransactionRepository) Touch(ctx context.Context, merchantTxID string, at time.Time) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE bluecode_transactions SET updated_at = $1
		 WHERE merchant_tx_id = $2 AND state = ANY($3)`,
		at, merchantTxID, openStates,
	)
	if err != nil {
		return fmt.Errorf("touch transaction: %w", err)
	}
	return nil
}

func scanTransaction(s scanner) (*transaction.Transaction, error) {
	tx := &transaction.Transaction{}
	var (
		state             string
		ttlMs, intervalMs int64
	)
	err := s.Scan(
		&tx.ID, &tx.MerchantTxID, &tx.OrderID, &state, &tx.CheckinCode, &tx.AcquirerTxID,
		&ttlMs, &intervalMs, &tx.ResultCode, &tx.ErrorCode, &tx.CreatedAt, &tx.UpdatedAt, &tx.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.State = transaction.State(state)
	tx.TTL = time.Duration(ttlMs) * time.Millisecond
	tx.PollInterval = time.Duration(intervalMs) * time.Millisecond
	return tx, nil
}
