package payment

import (
	"context"

	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Provider is the configured provider facade. Every call validates the
// merchant configuration and attaches a valid bearer token.
type Provider interface {
	StatusChecker
	Merchant(ctx context.Context) (*settings.MerchantConfig, error)
	Register(ctx context.Context, r bluecode.RegisterRequest) (*bluecode.RegisterResult, error)
	Refund(ctx context.Context, acquirerTxID string, amount int64, reason string) (*bluecode.RefundResult, error)
}
