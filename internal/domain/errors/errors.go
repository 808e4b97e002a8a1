package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfigInvalid = errors.New("merchant configuration invalid")

	// Credential errors
	ErrAuthFailure       = errors.New("oauth2 authorization failed")
	ErrNoCredential      = errors.New("no stored credential or authorization code")
	ErrExchangeFailed    = errors.New("token exchange failed")
	ErrInvalidOAuthState = errors.New("invalid oauth2 state")

	// Provider errors
	ErrTransportFailure   = errors.New("provider transport failure")
	ErrProviderRejected   = errors.New("rejected by provider")
	ErrProviderProcessing = errors.New("provider still processing")
	ErrTimeout            = errors.New("provider polling deadline exceeded")

	// Order errors
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrTransactionExists      = errors.New("transaction already exists")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnsupportedCurrency    = errors.New("unsupported currency")
	ErrNotRefundable          = errors.New("order cannot be refunded")

	// Idempotency errors
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")

	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConfigError names the merchant setting that is missing. It matches
// ErrConfigInvalid with errors.Is.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s is missing", ErrConfigInvalid, e.Field)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// ConfigInvalid returns a ConfigError for field.
func ConfigInvalid(field string) error {
	return &ConfigError{Field: field}
}

// AuthError reports a failed credential operation. Reason is either
// ErrNoCredential or ErrExchangeFailed; both the reason and ErrAuthFailure
// match with errors.Is.
type AuthError struct {
	Reason error
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthFailure, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthFailure, e.Reason)
}

func (e *AuthError) Unwrap() []error {
	errs := []error{ErrAuthFailure, e.Reason}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AuthFailure builds an AuthError.
func AuthFailure(reason, cause error) error {
	return &AuthError{Reason: reason, Err: cause}
}

// ProviderError carries the provider's result and error_code for a call that
// reached the provider but did not succeed.
type ProviderError struct {
	Result    string
	ErrorCode string
	Message   string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s (%s)", e.Result, e.ErrorCode)
	}
	return e.Result
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRejected
}
