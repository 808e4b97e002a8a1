package controller

import (
	"context"
	"net/http"

	paymentApp "github.com/cassiomorais/bluecode/internal/application/payment"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
)

// Checkout starts payments for storefront orders.
type Checkout interface {
	ProcessPayment(ctx context.Context, orderID int64, userAgent string) (*paymentApp.ProcessResult, error)
	InitPayment(ctx context.Context, orderID int64) (*paymentApp.InitResult, error)
}

// CheckoutController handles the storefront's checkout calls.
type CheckoutController struct {
	checkout Checkout
	settings settings.Store
}

func NewCheckoutController(checkout Checkout, store settings.Store) *CheckoutController {
	return &CheckoutController{checkout: checkout, settings: store}
}

// Process handles POST /api/v1/checkout/orders/{id}/process
func (h *CheckoutController) Process(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.checkout.ProcessPayment(r.Context(), orderID, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// InitPayment handles POST /api/v1/checkout/init-payment. Payment failures
// are part of the reply, not HTTP errors, because the wallet script reads
// them.
func (h *CheckoutController) InitPayment(w http.ResponseWriter, r *http.Request) {
	var req InitPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.checkout.InitPayment(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Availability handles GET /api/v1/checkout/availability?currency=
func (h *CheckoutController) Availability(w http.ResponseWriter, r *http.Request) {
	a, err := paymentApp.CheckAvailability(r.Context(), h.settings, r.URL.Query().Get("currency"), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
