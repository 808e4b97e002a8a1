package controller

import (
	"context"
	"net/http"

	paymentApp "github.com/cassiomorais/bluecode/internal/application/payment"
	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/shopspring/decimal"
)

// Refunder returns money for paid orders.
type Refunder interface {
	Refund(ctx context.Context, orderID int64, amount *decimal.Decimal, reason string) (*paymentApp.RefundResult, error)
}

// OrderHistory reads an order together with the notes the gateway left on it.
type OrderHistory interface {
	Get(ctx context.Context, id int64) (*order.Order, error)
	ListNotes(ctx context.Context, id int64) ([]order.Note, error)
}

// AdminController serves the merchant back office.
type AdminController struct {
	auth     Authorizer
	settings settings.Store
	refunds  Refunder
	orders   OrderHistory
}

func NewAdminController(auth Authorizer, store settings.Store, refunds Refunder, orders OrderHistory) *AdminController {
	return &AdminController{auth: auth, settings: store, refunds: refunds, orders: orders}
}

// AuthorizeURL handles POST /api/v1/admin/oauth2/authorize-url
func (h *AdminController) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.AuthorizeURL(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthorizeURLResponse{URL: u})
}

// GetSettings handles GET /api/v1/admin/settings
func (h *AdminController) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Merchant(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(cfg))
}

// UpdateSettings handles PUT /api/v1/admin/settings
func (h *AdminController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg := req.toMerchantConfig()
	if err := cfg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.settings.SaveMerchant(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(cfg))
}

// Refund handles POST /api/v1/admin/orders/{id}/refund
func (h *AdminController) Refund(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RefundRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := req.refundAmount()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.refunds.Refund(r.Context(), orderID, amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetOrder handles GET /api/v1/admin/orders/{id}
func (h *AdminController) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := h.orders.ListNotes(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, notes))
}
