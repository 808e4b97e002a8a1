package bluecode

import (
	"net/http"
	"time"
)

const (
	ResultOK         = "OK"
	ResultProcessing = "PROCESSING"
	ResultError      = "ERROR"

	ErrorCodeTxIDNotUnique = "MERCHANT_TX_ID_NOT_UNIQUE"
	ErrorCodeIssuerFailure = "ISSUER_FAILURE"
)

// Auth selects the provider environment and the bearer token for one call.
type Auth struct {
	Sandbox     bool
	AccessToken string
}

// RegisterRequest is the payment registration form.
type RegisterRequest struct {
	MerchantTxID     string
	SlipDateTime     time.Time
	Currency         string
	Amount           int64
	BranchID         string
	Terminal         string
	Slip             string
	CallbackURL      string
	ReturnURLSuccess string
	ReturnURLFailure string
	ReturnURLCancel  string
}

// Payment is the provider's view of a payment.
type Payment struct {
	MerchantTxID     string `json:"merchant_tx_id"`
	AcquirerTxID     string `json:"acquirer_tx_id"`
	State            string `json:"state"`
	CheckinCode      string `json:"checkin_code"`
	Code             string `json:"code"`
	ReturnURLSuccess string `json:"return_url_success"`
	ReturnURLFailure string `json:"return_url_failure"`
	ReturnURLCancel  string `json:"return_url_cancel"`
}

// ProcessingStatus is returned with result PROCESSING. TTL is in seconds,
// CheckStatusIn in milliseconds.
type ProcessingStatus struct {
	TTL           int64  `json:"ttl"`
	CheckStatusIn int64  `json:"check_status_in"`
	MerchantTxID  string `json:"merchant_tx_id"`
}

// TTLDuration converts the ttl field.
func (s *ProcessingStatus) TTLDuration() time.Duration {
	return time.Duration(s.TTL) * time.Second
}

// Interval converts the check_status_in field.
func (s *ProcessingStatus) Interval() time.Duration {
	return time.Duration(s.CheckStatusIn) * time.Millisecond
}

// Envelope holds the fields every provider response may carry.
type Envelope struct {
	HTTPCode  int               `json:"-"`
	Result    string            `json:"result"`
	ErrorCode string            `json:"error_code"`
	Payment   *Payment          `json:"payment,omitempty"`
	Status    *ProcessingStatus `json:"status,omitempty"`
}

// OK reports the provider success predicate: HTTP 200 and result OK.
func (e *Envelope) OK() bool {
	return e != nil && e.HTTPCode == http.StatusOK && e.Result == ResultOK
}

// Processing reports whether the provider asked to poll again.
func (e *Envelope) Processing() bool {
	return e != nil && e.Result == ResultProcessing
}

// PaymentState returns payment.state or an empty string.
func (e *Envelope) PaymentState() string {
	if e == nil || e.Payment == nil {
		return ""
	}
	return e.Payment.State
}

// RegisterResult is the response to register.
type RegisterResult struct {
	Envelope
}

// CheckinCode returns the code the payer's app needs to complete payment.
func (r *RegisterResult) CheckinCode() string {
	if r.Payment == nil {
		return ""
	}
	return r.Payment.CheckinCode
}

// StatusResult is the response to status.
type StatusResult struct {
	Envelope
}

// InstantRefund is present when the refund settled immediately.
type InstantRefund struct {
	EndToEndID       string `json:"end_to_end_id"`
	RefundableAmount any    `json:"refundable_amount"`
}

// RefundResult is the response to refund.
type RefundResult struct {
	Envelope
	InstantRefund *InstantRefund `json:"instant_refund,omitempty"`
}

// TokenRequest is the OAuth2 token form. Exactly one of Code and
// RefreshToken is set.
type TokenRequest struct {
	Code         string
	RefreshToken string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// GrantType derives the grant from the populated field.
func (r TokenRequest) GrantType() string {
	if r.Code != "" {
		return "authorization_code"
	}
	return "refresh_token"
}

// TokenResult is the OAuth2 token response.
type TokenResult struct {
	HTTPCode     int    `json:"-"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// OK reports a usable token response. Token calls carry no result field.
func (t *TokenResult) OK() bool {
	return t != nil && t.HTTPCode == http.StatusOK && t.AccessToken != ""
}

// Money is an amount in minor units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ReceiptRequest is the JSON body of the receipt operation.
type ReceiptRequest struct {
	BranchExtID  string          `json:"branch_ext_id"`
	AcquirerTxID string          `json:"acquirer_tx_id"`
	Receipt      ReceiptDocument `json:"receipt"`
}

type ReceiptDocument struct {
	DisplayConfiguration   DisplayConfiguration `json:"display_configuration"`
	InvoiceNumber          string               `json:"invoice_number"`
	Items                  []ReceiptItem        `json:"items"`
	Merchant               ReceiptMerchant      `json:"merchant"`
	Notes                  string               `json:"notes"`
	Payments               []ReceiptPayment     `json:"payments"`
	Signature              ReceiptSignature     `json:"signature"`
	TotalAmount            Money                `json:"total_amount"`
	TransactionDateAndTime string               `json:"transaction_date_and_time"`
}

type DisplayConfiguration struct {
	ShowQuantity     bool `json:"show_quantity"`
	ShowSingleAmount bool `json:"show_single_amount"`
	ShowTaxCategory  bool `json:"show_tax_category"`
}

type ReceiptItem struct {
	Description  string `json:"description"`
	EAN          string `json:"ean"`
	Quantity     int    `json:"quantity"`
	SingleAmount Money  `json:"single_amount"`
	TotalAmount  Money  `json:"total_amount"`
}

type ReceiptMerchant struct {
	Branch ReceiptBranch `json:"branch"`
	Name   string        `json:"name"`
}

type ReceiptBranch struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Website string `json:"website"`
}

type ReceiptPayment struct {
	AcquirerTxID string `json:"acquirer_tx_id"`
	Paid         Money  `json:"paid"`
	Type         string `json:"type"`
}

type ReceiptSignature struct {
	QRCodeValue string `json:"qr_code_value"`
}
