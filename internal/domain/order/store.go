package order

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the storefront order collaborator.
type Store interface {
	// Get retrieves an order with its items
	Get(ctx context.Context, id int64) (*Order, error)

	// GetTotal returns the order total
	GetTotal(ctx context.Context, id int64) (decimal.Decimal, error)

	// GetCustomerID returns the customer id, 0 for guest orders
	GetCustomerID(ctx context.Context, id int64) (int64, error)

	// GetItems returns the order lines
	GetItems(ctx context.Context, id int64) ([]Item, error)

	// SetStatus moves a pending order to status. It returns
	// ErrOrderNotPending when the order already left pending.
	SetStatus(ctx context.Context, id int64, status Status) error

	// MarkPaid moves a pending order to processing and records the acquirer
	// transaction id. It returns ErrOrderNotPending when the order already
	// left pending.
	MarkPaid(ctx context.Context, id int64, acquirerTxID string) error

	// AddNote appends a note to the order history
	AddNote(ctx context.Context, id int64, text string) error

	// GetReturnURL returns the order-received page
	GetReturnURL(ctx context.Context, id int64) (string, error)

	// GetCancelURL returns the cart page the buyer lands on after cancelling
	GetCancelURL(ctx context.Context, id int64) (string, error)
}
