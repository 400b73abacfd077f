package errors

import "errors"

var (
	ErrNotFound = errors.New("parking lot not found")

	// ErrNoAvailableSlot is returned by the conditional decrement when the
	// lot had no free slot at the moment of the update.
	ErrNoAvailableSlot = errors.New("no available slot")

	// ErrSlotsAtCapacity is returned by the conditional increment when
	// available already equals total.
	ErrSlotsAtCapacity = errors.New("available slots already at total capacity")
)
