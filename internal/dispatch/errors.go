package dispatch

import "errors"

// Sentinel errors for the dispatcher.
var (
	// ErrDispatcherClosed is returned when dispatching after Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrNilAction is returned when an action has no Run function.
	ErrNilAction = errors.New("action has no Run function")
)

// PanicError wraps a panic recovered from an action.
type PanicError struct {
	// Action is the name of the action that panicked.
	Action string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Action == "" {
		return "action panicked"
	}
	return "action " + e.Action + " panicked"
}
