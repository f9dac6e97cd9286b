package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized access")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict: resource already exists")
	ErrInternal      = errors.New("internal server error")
	ErrBadRequest    = errors.New("bad request")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Billing errors
var (
	// ErrSignatureInvalid means a webhook delivery failed verification and
	// must be rejected without processing.
	ErrSignatureInvalid = errors.New("webhook signature invalid or missing")

	ErrAlreadySubscribed    = errors.New("tenant already subscribed to this plan")
	ErrDowngradeNotAllowed  = errors.New("downgrades must go through cancellation")
	ErrSubscriptionCancelled = errors.New("subscription is cancelled")

	// ErrChargeRejected is a provider-side decline; surfaced to the caller
	// as a user error.
	ErrChargeRejected = errors.New("payment was rejected by the provider")
	// ErrProviderUnavailable is a provider network or 5xx failure; the
	// caller must resubmit.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
