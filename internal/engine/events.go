package engine

import "github.com/dshills/debugstorm/internal/breakev"

// EventKind identifies a kind of asynchronous target event.
type EventKind int

const (
	// TargetReady is raised when the target is initialized and about to run.
	TargetReady EventKind = iota
	// TargetStopped is raised when the target stopped for a reason other
	// than the more specific kinds below.
	TargetStopped
	// TargetInterrupted is raised when the target stopped due to an
	// explicit interruption request.
	TargetInterrupted
	// TargetHitBreakpoint is raised when the target stopped at a break event.
	TargetHitBreakpoint
	// TargetSignaled is raised when the target stopped due to a signal.
	TargetSignaled
	// TargetExited is raised when the target process exited.
	TargetExited
	// TargetExceptionThrown is raised when the target stopped at a thrown
	// exception.
	TargetExceptionThrown
	// TargetUnhandledException is raised when the target stopped at an
	// exception with no handler.
	TargetUnhandledException
	// ThreadStarted is raised when a target thread starts.
	ThreadStarted
	// ThreadStopped is raised when a target thread exits.
	ThreadStopped
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case TargetReady:
		return "target-ready"
	case TargetStopped:
		return "target-stopped"
	case TargetInterrupted:
		return "target-interrupted"
	case TargetHitBreakpoint:
		return "target-hit-breakpoint"
	case TargetSignaled:
		return "target-signaled"
	case TargetExited:
		return "target-exited"
	case TargetExceptionThrown:
		return "target-exception-thrown"
	case TargetUnhandledException:
		return "target-unhandled-exception"
	case ThreadStarted:
		return "thread-started"
	case ThreadStopped:
		return "thread-stopped"
	default:
		return "unknown"
	}
}

// IsStopEvent reports whether receipt of this kind transitions a running
// session to the stopped state.
func (k EventKind) IsStopEvent() bool {
	switch k {
	case TargetStopped, TargetInterrupted, TargetHitBreakpoint,
		TargetSignaled, TargetExceptionThrown, TargetUnhandledException:
		return true
	default:
		return false
	}
}

// TargetEvent is an asynchronous notification from the engine about the
// target. Process, Thread, Backtrace, and BreakEvent are optional; which are
// set depends on the kind.
type TargetEvent struct {
	Kind      EventKind
	Process   *ProcessInfo
	Thread    *ThreadInfo
	Backtrace *Backtrace

	// BreakEvent is the break event that caused a TargetHitBreakpoint.
	BreakEvent breakev.BreakEvent

	// IsStopEvent caches Kind.IsStopEvent at construction.
	IsStopEvent bool
}

// NewTargetEvent returns a TargetEvent of the given kind with the derived
// stop flag set.
func NewTargetEvent(kind EventKind) TargetEvent {
	return TargetEvent{Kind: kind, IsStopEvent: kind.IsStopEvent()}
}
