package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction persistence
type Repository interface {
	// Create stores a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// GetByMerchantTxID retrieves a transaction by the merchant transaction id
	GetByMerchantTxID(ctx context.Context, merchantTxID string) (*Transaction, error)

	// GetByOrderID retrieves the latest transaction of an order
	GetByOrderID(ctx context.Context, orderID int64) (*Transaction, error)

	// Update updates an existing transaction
	Update(ctx context.Context, tx *Transaction) error

	// ListStale lists non-terminal transactions last updated before olderThan
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error)

	// Touch moves updated_at of a non-terminal transaction to at. Terminal
	// transactions are left alone.
	Touch(ctx context.Context, merchantTxID string, at time.Time) error
}
