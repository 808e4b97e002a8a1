package settings

import (
	"context"
	"strings"
	"time"

	"github.com/cassiomorais/bluecode/internal/domain/errors"
)

// SupportedCurrency is the only processing currency offered to buyers.
const SupportedCurrency = "EUR"

// TokenSkew is subtracted from a credential's expiry before it is used.
const TokenSkew = 10 * time.Second

// MerchantConfig is the merchant-side gateway configuration.
type MerchantConfig struct {
	Enabled         bool
	Title           string
	Description     string
	ClientID        string
	ClientSecret    string
	BranchID        string
	PurposeTemplate string
	Sandbox         bool
	MiniAppOnly     bool
}

// Validate checks the settings every provider call depends on.
func (c *MerchantConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.ClientID) == "":
		return errors.ConfigInvalid("client_id")
	case strings.TrimSpace(c.ClientSecret) == "":
		return errors.ConfigInvalid("client_secret")
	case strings.TrimSpace(c.BranchID) == "":
		return errors.ConfigInvalid("branch_id")
	case strings.TrimSpace(c.PurposeTemplate) == "":
		return errors.ConfigInvalid("purpose")
	}
	return nil
}

// Credential is the merchant's OAuth2 token set.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// UsableAt reports whether the access token may still be sent at now.
func (c *Credential) UsableAt(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-TokenSkew))
}

// Store holds the merchant configuration.
type Store interface {
	Merchant(ctx context.Context) (*MerchantConfig, error)
	SaveMerchant(ctx context.Context, cfg *MerchantConfig) error
}

// CredentialRepository persists the shared OAuth2 credential. Implementations
// are not required to offer compare-and-swap.
type CredentialRepository interface {
	// GetCredential returns nil and no error when nothing is stored yet.
	GetCredential(ctx context.Context) (*Credential, error)
	SaveCredential(ctx context.Context, c *Credential) error
}
