package session

import "errors"

// Sentinel errors for the session façade.
var (
	// ErrNilEngine is returned when constructing a session without an engine.
	ErrNilEngine = errors.New("engine cannot be nil")

	// ErrNilStartInfo is returned when Run is called without start info.
	ErrNilStartInfo = errors.New("start info cannot be nil")

	// ErrNilOptions is returned when Run or Attach is called without options.
	ErrNilOptions = errors.New("options cannot be nil")

	// ErrNilProcess is returned when attaching to a nil process.
	ErrNilProcess = errors.New("process cannot be nil")

	// ErrNilThread is returned when activating a nil thread.
	ErrNilThread = errors.New("thread cannot be nil")

	// ErrInvalidState is returned when a command is issued in a state that
	// rejects it as a programmer error.
	ErrInvalidState = errors.New("command not valid in current session state")

	// ErrSessionDisposed is returned by queries on a disposed session.
	// Commands on a disposed session are silent no-ops.
	ErrSessionDisposed = errors.New("session is disposed")
)
