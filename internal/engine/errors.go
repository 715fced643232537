package engine

import "errors"

// Sentinel errors for engine value objects.
var (
	// ErrNotAttached is returned when a value object is queried before a
	// session back-reference was installed.
	ErrNotAttached = errors.New("not attached to a session")

	// ErrFrameOutOfRange is returned for an invalid backtrace frame index.
	ErrFrameOutOfRange = errors.New("frame index out of range")
)
