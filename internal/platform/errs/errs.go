// Package errs defines the error taxonomy shared by the ledger services.
// Handlers map these types to HTTP status codes; everything else stays a
// plain wrapped error.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports a user-correctable problem with a request. It is
// always raised before any mutation is attempted.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AccessDeniedError reports a hospital/unit mismatch. The message never
// reveals whether the target record exists.
type AccessDeniedError struct {
	Msg string
}

func (e *AccessDeniedError) Error() string { return e.Msg }

// AccessDenied builds an AccessDeniedError with a fixed, non-leaking message.
func AccessDenied() error {
	return &AccessDeniedError{Msg: "access denied"}
}

// NotFoundError reports an absent item, activity, or check.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given record kind and id.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConcurrencyError reports a row-lock timeout or serialization failure.
// It is retryable; the retry policy belongs to the caller.
type ConcurrencyError struct {
	Msg string
}

func (e *ConcurrencyError) Error() string { return e.Msg }

// Concurrencyf builds a ConcurrencyError from a format string.
func Concurrencyf(format string, args ...interface{}) error {
	return &ConcurrencyError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAccessDenied reports whether err is (or wraps) an AccessDeniedError.
func IsAccessDenied(err error) bool {
	var ae *AccessDeniedError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsConcurrency reports whether err is (or wraps) a ConcurrencyError.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}
