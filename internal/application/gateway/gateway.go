// Package gateway binds the merchant configuration and credential to the
// provider client so callers deal only in orders and transactions.
package gateway

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/cassiomorais/bluecode/internal/infrastructure/observability"
	"github.com/cassiomorais/bluecode/pkg/retry"
	"github.com/rs/zerolog"
)

// Client is the provider API surface used here.
type Client interface {
	Register(ctx context.Context, auth bluecode.Auth, r bluecode.RegisterRequest) (*bluecode.RegisterResult, error)
	Status(ctx context.Context, auth bluecode.Auth, merchantTxID string) (*bluecode.StatusResult, error)
	Cancel(ctx context.Context, auth bluecode.Auth, merchantTxID string) (bool, error)
	Refund(ctx context.Context, auth bluecode.Auth, acquirerTxID string, amount int64, reason string) (*bluecode.RefundResult, error)
	Receipt(ctx context.Context, auth bluecode.Auth, r *bluecode.ReceiptRequest) (int, error)
}

// TokenSource hands out bearer tokens.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, forceRefresh bool, authorizationCode string) (string, error)
}

// Gateway validates the merchant configuration and obtains a token before
// every provider call.
type Gateway struct {
	settings settings.Store
	tokens   TokenSource
	client   Client
	retry    retry.Config
	logger   zerolog.Logger
}

// New builds a Gateway. statusRetry governs how transport failures of the
// read-only status call are retried.
func New(settingsStore settings.Store, tokens TokenSource, client Client, statusRetry retry.Config, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		settings: settingsStore,
		tokens:   tokens,
		client:   client,
		retry:    statusRetry,
		logger:   observability.Component(logger, "gateway"),
	}
	g.retry.RetryIf = func(err error) bool {
		return errors.Is(err, domainErrors.ErrTransportFailure)
	}
	g.retry.OnRetry = func(n uint, err error) {
		g.logger.Warn().Err(err).Uint("attempt", n+1).Msg("status call failed, retrying")
	}
	return g
}

// Merchant loads and validates the merchant configuration.
func (g *Gateway) Merchant(ctx context.Context) (*settings.MerchantConfig, error) {
	cfg, err := g.settings.Merchant(ctx)
	if err != nil {
		return nil, fmt.Errorf("load merchant settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *Gateway) auth(ctx context.Context) (bluecode.Auth, error) {
	cfg, err := g.Merchant(ctx)
	if err != nil {
		return bluecode.Auth{}, err
	}
	token, err := g.tokens.GetValidAccessToken(ctx, false, "")
	if err != nil {
		return bluecode.Auth{}, err
	}
	return bluecode.Auth{Sandbox: cfg.Sandbox, AccessToken: token}, nil
}

func (g *Gateway) Register(ctx context.Context, r bluecode.RegisterRequest) (*bluecode.RegisterResult, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return nil, err
	}
	return g.client.Register(ctx, auth, r)
}

// Status is safe to repeat, so transport failures are retried.
func (g *Gateway) Status(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return nil, err
	}
	return retry.DoWithResult(ctx, g.retry, func() (*bluecode.StatusResult, error) {
		return g.client.Status(ctx, auth, merchantTxID)
	})
}

// StatusOnce makes a single status call. Pollers that own their own deadline
// use it so retries never stretch a poll past that deadline.
func (g *Gateway) StatusOnce(ctx context.Context, merchantTxID string) (*bluecode.StatusResult, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return nil, err
	}
	return g.client.Status(ctx, auth, merchantTxID)
}

func (g *Gateway) Cancel(ctx context.Context, merchantTxID string) (bool, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return false, err
	}
	return g.client.Cancel(ctx, auth, merchantTxID)
}

func (g *Gateway) Refund(ctx context.Context, acquirerTxID string, amount int64, reason string) (*bluecode.RefundResult, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return nil, err
	}
	return g.client.Refund(ctx, auth, acquirerTxID, amount, reason)
}

func (g *Gateway) Receipt(ctx context.Context, r *bluecode.ReceiptRequest) (int, error) {
	auth, err := g.auth(ctx)
	if err != nil {
		return 0, err
	}
	return g.client.Receipt(ctx, auth, r)
}
