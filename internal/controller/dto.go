package controller

import (
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string amounts, validation tags).
// Controllers convert them before calling the application services.

// InitPaymentRequest is sent by the mini-app script once the buyer confirms.
type InitPaymentRequest struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

// UpdateSettingsRequest replaces the merchant gateway settings.
type UpdateSettingsRequest struct {
	Enabled         bool   `json:"enabled"`
	Title           string `json:"title" validate:"max=255"`
	Description     string `json:"description" validate:"max=1024"`
	ClientID        string `json:"client_id" validate:"required,max=255"`
	ClientSecret    string `json:"client_secret" validate:"required,max=255"`
	BranchID        string `json:"branch_id" validate:"required,max=255"`
	PurposeTemplate string `json:"purpose" validate:"required,max=255"`
	Sandbox         bool   `json:"sandbox"`
	MiniAppOnly     bool   `json:"mini_app_only"`
}

// RefundRequest refunds part or all of a paid order. Amount is a decimal
// string in the order currency; empty refunds the order total.
type RefundRequest struct {
	Amount *string `json:"amount,omitempty" validate:"omitempty,numeric"`
	Reason string  `json:"reason" validate:"max=255"`
}

// --- Response DTOs ---

// AuthorizeURLResponse carries the merchant portal URL starting OAuth2.
type AuthorizeURLResponse struct {
	URL string `json:"url"`
}

// SettingsResponse echoes the stored settings without the client secret.
type SettingsResponse struct {
	Enabled         bool   `json:"enabled"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ClientID        string `json:"client_id"`
	HasClientSecret bool   `json:"has_client_secret"`
	BranchID        string `json:"branch_id"`
	PurposeTemplate string `json:"purpose"`
	Sandbox         bool   `json:"sandbox"`
	MiniAppOnly     bool   `json:"mini_app_only"`
}

// OrderResponse is the back-office view of an order and its payment history.
type OrderResponse struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	Total         string         `json:"total"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Notes         []NoteResponse `json:"notes"`
}

// NoteResponse is one entry of the order history.
type NoteResponse struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NotifyResponse acknowledges a provider notification.
type NotifyResponse struct {
	OrderID int64  `json:"order_id"`
	State   string `json:"state"`
	Applied bool   `json:"applied"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func (r *UpdateSettingsRequest) toMerchantConfig() *settings.MerchantConfig {
	return &settings.MerchantConfig{
		Enabled:         r.Enabled,
		Title:           r.Title,
		Description:     r.Description,
		ClientID:        r.ClientID,
		ClientSecret:    r.ClientSecret,
		BranchID:        r.BranchID,
		PurposeTemplate: r.PurposeTemplate,
		Sandbox:         r.Sandbox,
		MiniAppOnly:     r.MiniAppOnly,
	}
}

func toSettingsResponse(c *settings.MerchantConfig) SettingsResponse {
	return SettingsResponse{
		Enabled:         c.Enabled,
		Title:           c.Title,
		Description:     c.Description,
		ClientID:        c.ClientID,
		HasClientSecret: c.ClientSecret != "",
		BranchID:        c.BranchID,
		PurposeTemplate: c.PurposeTemplate,
		Sandbox:         c.Sandbox,
		MiniAppOnly:     c.MiniAppOnly,
	}
}

// refundAmount parses the optional refund amount.
func (r *RefundRequest) refundAmount() (*decimal.Decimal, error) {
	if r.Amount == nil || *r.Amount == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*r.Amount)
	if err != nil {
		return nil, domainErrors.NewValidationError("amount", "must be a decimal number")
	}
	if !d.IsPositive() {
		return nil, domainErrors.NewValidationError("amount", "must be positive")
	}
	return &d, nil
}

func toOrderResponse(o *order.Order, notes []order.Note) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		Number:        o.Number,
		Status:        string(o.Status),
		Currency:      o.Currency,
		Total:         o.Total.StringFixed(2),
		TransactionID: o.TransactionID,
		Notes:         make([]NoteResponse, 0, len(notes)),
	}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, NoteResponse{Text: n.Text, CreatedAt: n.CreatedAt})
	}
	return resp
}
