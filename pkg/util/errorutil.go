package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the auth subsystem. Credential failures share one
// user-facing message so responses never reveal whether an account
// exists.
const (
	CodeInvalidCredentialFormat  = "INVALID_CREDENTIAL_FORMAT"
	CodeCredentialMismatch       = "CREDENTIAL_MISMATCH"
	CodeUnverifiedContactChannel = "UNVERIFIED_CONTACT_CHANNEL"
	CodeProviderUnavailable      = "PROVIDER_UNAVAILABLE"
	CodeRateLimited              = "RATE_LIMITED"
	CodeUnauthenticated          = "UNAUTHENTICATED"
	CodeRoleNotFinalized         = "ROLE_NOT_FINALIZED"
	CodeInsufficientRole         = "INSUFFICIENT_ROLE"
	CodeProfileMissing           = "PROFILE_MISSING"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
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

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewInvalidCredentialFormat(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidCredentialFormat, message, http.StatusBadRequest, details)
}

// NewCredentialMismatch returns the enumeration-resistant credential
// failure. Wrong password and unknown account produce the same value.
func NewCredentialMismatch() error {
	return NewDomainError(CodeCredentialMismatch, "invalid credentials", http.StatusUnauthorized, nil)
}

func NewUnverifiedContactChannel(channel string) error {
	return NewDomainError(CodeUnverifiedContactChannel, "contact channel not verified",
		http.StatusUnauthorized, map[string]any{"channel": channel})
}

func NewProviderUnavailable(err error) error {
	return &DomainError{
		Code:       CodeProviderUnavailable,
		Message:    "identity provider unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many attempts", http.StatusTooManyRequests, nil)
}

func NewUnauthenticated(message string) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

func NewRoleNotFinalized() error {
	return NewDomainError(CodeRoleNotFinalized, "role selection pending", http.StatusUnauthorized, nil)
}

func NewInsufficientRole() error {
	return NewDomainError(CodeInsufficientRole, "insufficient role", http.StatusForbidden, nil)
}

func NewProfileMissing(subjectID string) error {
	return NewDomainError(CodeProfileMissing, "profile not found",
		http.StatusUnauthorized, map[string]any{"subject_id": subjectID})
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf extracts the domain code from any error, empty for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

func MapError(err error) error {
	return ToDomainError(err)
}
