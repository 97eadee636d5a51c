// Package services defines the business logic for merchant timers and their
// storefront resolution. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Timer-related errors.
var (
	// ErrTimerNotFound indicates that the requested timer does not exist, was
	// deleted, or belongs to another shop.
	ErrTimerNotFound = errors.New("timer not found")

	// ErrInvalidTimer is returned when a timer payload fails validation. The
	// concrete reason is wrapped, so callers should match with errors.Is and
	// may surface err.Error() to the merchant.
	ErrInvalidTimer = errors.New("invalid timer")

	// ErrDuplicateRequest is returned when an Idempotency-Key was already used
	// but its original result can no longer be loaded.
	ErrDuplicateRequest = errors.New("duplicate request")
)
