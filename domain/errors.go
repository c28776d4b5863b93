package domain

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnsupportedProviderError reports an unknown provider kind
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("Unsupported provider: %s", e.Provider)
}

// SessionNotConfiguredError is returned when chatting on a session that was never configured
type SessionNotConfiguredError struct {
	SessionID string
}

func (e *SessionNotConfiguredError) Error() string {
	return "Session not configured. Please configure first."
}

// SessionNotFoundError is returned when reading or clearing an unknown session
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return "Session not found"
}

// ProviderError wraps any failure coming from a vendor call
type ProviderError struct {
	Vendor  string
	Cause   error
	Timeout bool
}

// NewProviderError creates a ProviderError, flagging deadline expiry as a timeout
func NewProviderError(vendor string, cause error) *ProviderError {
	return &ProviderError{
		Vendor:  vendor,
		Cause:   cause,
		Timeout: errors.Is(cause, context.DeadlineExceeded),
	}
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s API error: timeout: %v", e.Vendor, e.Cause)
	}
	return fmt.Sprintf("%s API error: %v", e.Vendor, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// UnresolvedIdentityError is returned when no user id could be resolved for a request
type UnresolvedIdentityError struct {
	Reason string
}

func (e *UnresolvedIdentityError) Error() string {
	if e.Reason == "" {
		return "Unable to resolve user id from token"
	}
	return "Unable to resolve user id from token: " + e.Reason
}

// IsClientError reports whether err was caused by the caller's request rather than an upstream failure
func IsClientError(err error) bool {
	var (
		validation    *ValidationError
		unsupported   *UnsupportedProviderError
		notConfigured *SessionNotConfiguredError
		notFound      *SessionNotFoundError
		identity      *UnresolvedIdentityError
	)
	return errors.As(err, &validation) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &notConfigured) ||
		errors.As(err, &notFound) ||
		errors.As(err, &identity)
}

// Error codes carried in error responses
const (
	CodeValidation           = "validation_error"
	CodeUnsupportedProvider  = "unsupported_provider"
	CodeSessionNotConfigured = "session_not_configured"
	CodeSessionNotFound      = "session_not_found"
	CodeUnauthorized         = "unauthorized"
	CodeProvider             = "provider_error"
	CodeInternal             = "internal_error"
)

// ErrorCode classifies err into one of the error codes
func ErrorCode(err error) string {
	var (
		validation    *ValidationError
		unsupported   *UnsupportedProviderError
		notConfigured *SessionNotConfiguredError
		notFound      *SessionNotFoundError
		identity      *UnresolvedIdentityError
		provider      *ProviderError
	)
	switch {
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &unsupported):
		return CodeUnsupportedProvider
	case errors.As(err, &notConfigured):
		return CodeSessionNotConfigured
	case errors.As(err, &notFound):
		return CodeSessionNotFound
	case errors.As(err, &identity):
		return CodeUnauthorized
	case errors.As(err, &provider):
		return CodeProvider
	}
	return CodeInternal
}
