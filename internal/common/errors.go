// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Request validation. Concrete failures wrap it with the offending field.
	ErrValidation = errors.New("validation error")

	// Credential workflow errors. Messages are returned to callers verbatim.
	ErrDuplicateCredential   = errors.New("Invalid credentials. Email or Username")
	ErrInvalidCredentials    = errors.New("Invalid credentials")
	ErrTokenExpiredOrInvalid = errors.New("Reset token has expired")
	ErrInvalidOrUsedToken    = errors.New("Verification token is either invalid or is already used")
	ErrPasswordMismatch      = errors.New("Passwords do not match")
	ErrSamePassword          = errors.New("Current and new password should not match")
	ErrUploadFailed          = errors.New("File upload error. Try again")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Notification transport errors. Never surfaced to HTTP callers.
	ErrDispatch = errors.New("dispatch error")
)

// ValidationError carries a field-level message for the caller and matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }
