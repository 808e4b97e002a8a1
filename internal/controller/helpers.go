package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	paymentApp "github.com/cassiomorais/bluecode/internal/application/payment"
	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrOrderNotPending, http.StatusConflict, "order_not_pending"},
	{domainErrors.ErrTransactionExists, http.StatusConflict, "duplicate_transaction"},
	{domainErrors.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_request"},
	{domainErrors.ErrNotRefundable, http.StatusUnprocessableEntity, "not_refundable"},
	{domainErrors.ErrUnsupportedCurrency, http.StatusUnprocessableEntity, "unsupported_currency"},
	{domainErrors.ErrConfigInvalid, http.StatusUnprocessableEntity, "configuration_invalid"},
	{domainErrors.ErrInvalidOAuthState, http.StatusBadRequest, "invalid_state"},
	{domainErrors.ErrAuthFailure, http.StatusBadGateway, "authorization_failed"},
	{domainErrors.ErrTransportFailure, http.StatusBadGateway, "provider_unavailable"},
	{domainErrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
	{domainErrors.ErrTimeout, http.StatusGatewayTimeout, "provider_timeout"},
	{domainErrors.ErrLockAcquisitionFailed, http.StatusConflict, "busy"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	// Buyer-facing checkout failures only expose their notice.
	var checkoutErr *paymentApp.CheckoutError
	if errors.As(err, &checkoutErr) {
		resp.Code = "payment_failed"
		resp.Error = checkoutErr.Notice
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}

// orderIDParam reads the {id} path segment.
func orderIDParam(r *http.Request) (int64, error) {
	return parseOrderID(chi.URLParam(r, "id"))
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domainErrors.NewValidationError("id", "must be a positive order id")
	}
	return id, nil
}
