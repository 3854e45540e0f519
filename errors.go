package rsvp

import "errors"

var (
	// ErrUnauthorized is returned for a wrong code, a bad credential or a failed challenge.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is returned for malformed input such as an unknown RSVP status.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration is returned when the service cannot be built from its config.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound is returned by stores when no record exists for a key.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when a login throttle trips.
	ErrRateLimited = errors.New("rate limited")
	// ErrLoginUnavailable is returned when the login backend cannot be reached.
	ErrLoginUnavailable = errors.New("login backend unavailable")
	// ErrDeliveryFailed is returned when a login code could not be sent.
	ErrDeliveryFailed = errors.New("login code delivery failed")
	// ErrStoreUnavailable is returned when the RSVP store fails.
	ErrStoreUnavailable = errors.New("rsvp store unavailable")
	// ErrEngineNotReady is returned when a Service was not built through Builder.
	ErrEngineNotReady = errors.New("service not initialized")

	errAttemptsExceeded = errors.New("login attempts exceeded")
)
