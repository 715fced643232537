package breakev

import "errors"

// Sentinel errors for the break event store.
var (
	// ErrNilBreakEvent is returned when a nil break event is passed to the store.
	ErrNilBreakEvent = errors.New("break event cannot be nil")

	// ErrDuplicateBreakEvent is returned when the same instance is added twice.
	ErrDuplicateBreakEvent = errors.New("break event already in store")

	// ErrBreakEventNotFound is returned when removing an event the store does not hold.
	ErrBreakEventNotFound = errors.New("break event not found in store")
)
