package engine

import (
	"github.com/dshills/debugstorm/internal/breakev"
)

// Handle is an opaque backend-assigned identifier for an installed break
// event. Backends may use integer IDs, pointers, or composite tokens. A nil
// Handle means "not currently bound".
type Handle any

// HandleEqualer lets a backend define equality for non-comparable handles.
type HandleEqualer interface {
	EqualHandle(other Handle) bool
}

// HandlesEqual reports whether two handles identify the same binding.
// Backends with composite handles implement HandleEqualer; comparable
// handles fall back to ==.
func HandlesEqual(a, b Handle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(HandleEqualer); ok {
		return eq.EqualHandle(b)
	}
	return a == b
}

// StartInfo describes how to launch a target process. Required by OnRun.
type StartInfo struct {
	Command    string
	Args       []string
	WorkingDir string
	Env        map[string]string

	// StopOnEntry asks the engine to stop at the program entry point.
	StopOnEntry bool

	// CloseExternalConsoleOnExit applies to targets launched in an
	// external console.
	CloseExternalConsoleOnExit bool
}

// BusyState describes whether the engine is busy with an evaluation and, if
// so, what it is doing.
type BusyState struct {
	IsBusy      bool
	Description string
}

// EventSink is the callback surface an engine uses to notify its session.
// All methods are safe to call from any goroutine that is not executing an
// engine operation for the same session.
type EventSink interface {
	// NotifyTargetEvent delivers an asynchronous target event. Events must
	// be delivered in the order they occurred.
	NotifyTargetEvent(ev TargetEvent)

	// NotifyTargetOutput delivers output written by the target process.
	NotifyTargetOutput(isStderr bool, text string)

	// NotifyDebuggerOutput delivers diagnostic output from the engine itself.
	NotifyDebuggerOutput(isStderr bool, text string)

	// NotifyStarted reports that the engine is initialized and ready to
	// bind break events. The thread, when known, becomes the active thread.
	NotifyStarted(thread *ThreadInfo)

	// NotifyCustomBreakpointAction asks the session to run the custom action
	// registered for a break event. The return value reports whether the
	// target should keep running.
	NotifyCustomBreakpointAction(actionID string, handle Handle) bool

	// NotifySourceFileLoaded reports that the target loaded a source file,
	// making unbound breakpoints in it eligible for re-binding.
	NotifySourceFileLoaded(path string)

	// NotifySourceFileUnloaded reports that the target unloaded a source
	// file. The engine is assumed to have dropped the affected bindings.
	NotifySourceFileUnloaded(path string)

	// SetBusyState reports evaluation busy-state changes.
	SetBusyState(state BusyState)
}

// Engine is a concrete debugging backend. Implementations are
// interchangeable; the session never depends on a specific backend.
//
// Every operation may block arbitrarily. Operations are serialized by the
// session, except OnResolveExpression, OnCancelAsyncEvaluations, and
// CanCancelAsyncEvaluations, which the session calls without holding its
// session lock and which may therefore run concurrently with other operations.
//
// Handle lifetime contract: when the session is told a source file was
// unloaded it forgets the handles of breakpoints in that file without calling
// OnRemoveBreakEvent. Engines must therefore drop those bindings themselves.
type Engine interface {
	// Bind installs the callback surface. Called once before any other
	// operation.
	Bind(sink EventSink)

	// Lifecycle.
	OnRun(info *StartInfo) error
	OnAttach(processID int64) error
	OnDetach() error
	OnExit() error
	OnStop() error

	// Execution control.
	OnContinue() error
	OnStepLine() error
	OnNextLine() error
	OnStepInstruction() error
	OnNextInstruction() error
	OnFinish() error
	OnSetActiveThread(processID, threadID int64) error

	// Break events.
	OnInsertBreakEvent(be breakev.BreakEvent, activate bool) (Handle, error)
	OnRemoveBreakEvent(handle Handle) error
	OnUpdateBreakEvent(handle Handle, be breakev.BreakEvent) (Handle, error)
	OnEnableBreakEvent(handle Handle, enabled bool) error

	// AllowBreakEventChanges reports whether break events may currently be
	// added, removed, or edited.
	AllowBreakEventChanges() bool

	// Introspection.
	OnGetProcesses() ([]*ProcessInfo, error)
	OnGetThreads(processID int64) ([]*ThreadInfo, error)
	OnGetThreadBacktrace(processID, threadID int64) (*Backtrace, error)

	// OnDisassembleFile returns the disassembly of a source file, or nil if
	// the engine cannot disassemble it.
	OnDisassembleFile(path string) ([]AssemblyLine, error)

	// Evaluation.
	OnResolveExpression(expression string, location SourceLocation) (string, error)
	OnCancelAsyncEvaluations()
	CanCancelAsyncEvaluations() bool
}
