package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrNotCancellable is returned when the confirmed → cancelled transition
	// matched no row, because another request already moved the booking.
	ErrNotCancellable = errors.New("booking is no longer confirmed")
)
