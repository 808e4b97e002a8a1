package payment

import (
	"context"

	"github.com/cassiomorais/bluecode/internal/domain/settings"
)

// Availability decides whether the gateway is offered at checkout.
type Availability struct {
	// Available is true when the gateway may be listed.
	Available bool `json:"available"`
	// Exclusive is true when every other gateway must be hidden.
	Exclusive bool `json:"exclusive"`
}

// CheckAvailability applies the currency and mini-app rules.
func CheckAvailability(ctx context.Context, store settings.Store, currency, userAgent string) (*Availability, error) {
	cfg, err := store.Merchant(ctx)
	if err != nil {
		return nil, err
	}
	miniApp := IsMiniApp(userAgent)
	a := &Availability{
		Available: cfg.Enabled && currency == settings.SupportedCurrency,
		Exclusive: miniApp,
	}
	if !miniApp && cfg.MiniAppOnly {
		a.Available = false
	}
	return a, nil
}
