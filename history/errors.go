package history

import "errors"

var (
	// ErrMultipleMessages is returned when more than one message is applied at once
	ErrMultipleMessages = errors.New("select only one message to apply")

	// ErrNothingSelected is returned when an operation needs at least one item
	ErrNothingSelected = errors.New("select at least one item")

	// ErrNotConfirmed is returned when a destructive action was not confirmed
	ErrNotConfirmed = errors.New("deletion not confirmed")

	// ErrRecordNotFound is returned for an unknown message id
	ErrRecordNotFound = errors.New("message not found")
)
