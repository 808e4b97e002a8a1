package testutil

import (
	"net/http"
	"time"

	"github.com/cassiomorais/bluecode/internal/domain/order"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/cassiomorais/bluecode/internal/domain/transaction"
	"github.com/cassiomorais/bluecode/internal/infrastructure/bluecode"
	"github.com/shopspring/decimal"
)

func NewTestMerchant() *settings.MerchantConfig {
	return &settings.MerchantConfig{
		Enabled:         true,
		Title:           "Bluecode",
		ClientID:        "client-1",
		ClientSecret:    "secret-1",
		BranchID:        "branch-1",
		PurposeTemplate: "Order [[ORDERID]] at [[SHOPNAME]]",
		Sandbox:         true,
	}
}

// NewTestOrder returns a pending EUR order with one line of total.
func NewTestOrder(id int64, total string) *order.Order {
	now := time.Now()
	amount := decimal.RequireFromString(total)
	return &order.Order{
		ID:         id,
		Number:     decimal.NewFromInt(id).String(),
		CustomerID: 7,
		Currency:   "EUR",
		Total:      amount,
		Status:     order.StatusPending,
		Items: []order.Item{{
			ProductID: 101,
			SKU:       "SKU-101",
			Name:      "Coffee beans",
			Quantity:  1,
			UnitPrice: amount,
			Total:     amount,
			TotalTax:  decimal.Zero,
		}},
		ReturnURL:  "https://shop.test/checkout/order-received/",
		CancelURL:  "https://shop.test/cart/",
		PaymentURL: "https://shop.test/checkout/order-pay/",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func NewTestTransaction(merchantTxID string, orderID int64, state transaction.State) *transaction.Transaction {
	tx, _ := transaction.New(merchantTxID, orderID)
	tx.State = state
	return tx
}

// RegisterOK is a register reply carrying a checkin code.
func RegisterOK(checkin string) *bluecode.RegisterResult {
	return &bluecode.RegisterResult{Envelope: bluecode.Envelope{
		HTTPCode: http.StatusOK,
		Result:   bluecode.ResultOK,
		Payment:  &bluecode.Payment{State: "REGISTERED", CheckinCode: checkin},
	}}
}

// RegisterProcessing asks the caller to poll every intervalMs for ttlSec.
func RegisterProcessing(ttlSec, intervalMs int64) *bluecode.RegisterResult {
	return &bluecode.RegisterResult{Envelope: bluecode.Envelope{
		HTTPCode: http.StatusOK,
		Result:   bluecode.ResultProcessing,
		Status:   &bluecode.ProcessingStatus{TTL: ttlSec, CheckStatusIn: intervalMs},
	}}
}

// RegisterError is a rejected registration.
func RegisterError(code string) *bluecode.RegisterResult {
	return &bluecode.RegisterResult{Envelope: bluecode.Envelope{
		HTTPCode:  http.StatusBadRequest,
		Result:    bluecode.ResultError,
		ErrorCode: code,
	}}
}

// StatusOf is a status reply with the given payment state.
func StatusOf(state, acquirerTxID string) *bluecode.StatusResult {
	return &bluecode.StatusResult{Envelope: bluecode.Envelope{
		HTTPCode: http.StatusOK,
		Result:   bluecode.ResultOK,
		Payment:  &bluecode.Payment{State: state, AcquirerTxID: acquirerTxID, CheckinCode: "checkin-1"},
	}}
}

// StatusProcessing is a status reply asking to keep polling.
func StatusProcessing() *bluecode.StatusResult {
	return &bluecode.StatusResult{Envelope: bluecode.Envelope{
		HTTPCode: http.StatusOK,
		Result:   bluecode.ResultProcessing,
	}}
}

// StatusFailure is a status reply with a non-OK result.
func StatusFailure(result, code string) *bluecode.StatusResult {
	return &bluecode.StatusResult{Envelope: bluecode.Envelope{
		HTTPCode:  http.StatusOK,
		Result:    result,
		ErrorCode: code,
	}}
}
