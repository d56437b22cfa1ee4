package auth

import "errors"

var (
	// ErrEmptyToken is returned when a blank token or passkey is submitted
	ErrEmptyToken = errors.New("token is required")

	// ErrUnknownKind is returned by AccessStore.Grant for an unsupported marker
	ErrUnknownKind = errors.New("unknown access kind")

	// ErrInvalidDevice is returned when the device cookie fails verification
	ErrInvalidDevice = errors.New("invalid device token")
)
