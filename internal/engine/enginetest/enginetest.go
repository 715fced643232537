// Package enginetest provides a scriptable Engine for tests and demos. Every
// operation is recorded and can be overridden per test with a hook function.
package enginetest

import (
	"sync"

	"github.com/dshills/debugstorm/internal/breakev"
	"github.com/dshills/debugstorm/internal/engine"
)

// Engine is a scriptable engine. The zero value allows break event changes
// and assigns sequential integer handles.
type Engine struct {
	mu         sync.Mutex
	sink       engine.EventSink
	calls      []string
	nextHandle int

	// Hooks. A nil hook gets the default behavior: success, and for
	// OnInsertBreakEvent a fresh integer handle.
	RunFunc             func(info *engine.StartInfo) error
	AttachFunc          func(processID int64) error
	StopFunc            func() error
	ContinueFunc        func() error
	StepLineFunc        func() error
	NextLineFunc        func() error
	StepInstructionFunc func() error
	NextInstructionFunc func() error
	FinishFunc          func() error
	InsertFunc          func(be breakev.BreakEvent, activate bool) (engine.Handle, error)
	RemoveFunc          func(handle engine.Handle) error
	UpdateFunc          func(handle engine.Handle, be breakev.BreakEvent) (engine.Handle, error)
	EnableFunc          func(handle engine.Handle, enabled bool) error
	ResolveFunc         func(expression string, location engine.SourceLocation) (string, error)

	// Introspection results.
	Processes    []*engine.ProcessInfo
	ThreadsByPID map[int64][]*engine.ThreadInfo
	BacktraceFn  func(processID, threadID int64) (*engine.Backtrace, error)
	Disassembly  []engine.AssemblyLine

	// Capability flags.
	ReadOnlyBreakEvents bool
	CanCancel           bool
}

// New returns a fresh scriptable engine.
func New() *Engine {
	return &Engine{}
}

// Sink returns the bound event sink, for posting notifications from tests.
func (e *Engine) Sink() engine.EventSink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

// Calls returns the recorded operation names in invocation order.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.calls...)
}

// CallCount returns how many times the named operation was invoked.
func (e *Engine) CallCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls clears the recorded operations.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func (e *Engine) record(name string) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
}

// PostEvent delivers a target event of the given kind through the sink.
func (e *Engine) PostEvent(kind engine.EventKind) {
	e.Sink().NotifyTargetEvent(engine.NewTargetEvent(kind))
}

// PostStarted reports engine initialization through the sink.
func (e *Engine) PostStarted(thread *engine.ThreadInfo) {
	e.Sink().NotifyStarted(thread)
}

// Bind implements engine.Engine.
func (e *Engine) Bind(sink engine.EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

// OnRun implements engine.Engine.
func (e *Engine) OnRun(info *engine.StartInfo) error {
	e.record("run")
	if e.RunFunc != nil {
		return e.RunFunc(info)
	}
	return nil
}

// OnAttach implements engine.Engine.
func (e *Engine) OnAttach(processID int64) error {
	e.record("attach")
	if e.AttachFunc != nil {
		return e.AttachFunc(processID)
	}
	return nil
}

// OnDetach implements engine.Engine.
func (e *Engine) OnDetach() error {
	e.record("detach")
	return nil
}

// OnExit implements engine.Engine.
func (e *Engine) OnExit() error {
	e.record("exit")
	return nil
}

// OnStop implements engine.Engine.
func (e *Engine) OnStop() error {
	e.record("stop")
	if e.StopFunc != nil {
		return e.StopFunc()
	}
	return nil
}

// OnContinue implements engine.Engine.
func (e *Engine) OnContinue() error {
	e.record("continue")
	if e.ContinueFunc != nil {
		return e.ContinueFunc()
	}
	return nil
}

// OnStepLine implements engine.Engine.
func (e *Engine) OnStepLine() error {
	e.record("step-line")
	if e.StepLineFunc != nil {
		return e.StepLineFunc()
	}
	return nil
}

// OnNextLine implements engine.Engine.
func (e *Engine) OnNextLine() error {
	e.record("next-line")
	if e.NextLineFunc != nil {
		return e.NextLineFunc()
	}
	return nil
}

// OnStepInstruction implements engine.Engine.
func (e *Engine) OnStepInstruction() error {
	e.record("step-instruction")
	if e.StepInstructionFunc != nil {
		return e.StepInstructionFunc()
	}
	return nil
}

// OnNextInstruction implements engine.Engine.
func (e *Engine) OnNextInstruction() error {
	e.record("next-instruction")
	if e.NextInstructionFunc != nil {
		return e.NextInstructionFunc()
	}
	return nil
}

// OnFinish implements engine.Engine.
func (e *Engine) OnFinish() error {
	e.record("finish")
	if e.FinishFunc != nil {
		return e.FinishFunc()
	}
	return nil
}

// OnSetActiveThread implements engine.Engine.
func (e *Engine) OnSetActiveThread(processID, threadID int64) error {
	e.record("set-active-thread")
	return nil
}

// OnInsertBreakEvent implements engine.Engine.
func (e *Engine) OnInsertBreakEvent(be breakev.BreakEvent, activate bool) (engine.Handle, error) {
	e.record("insert-break-event")
	if e.InsertFunc != nil {
		return e.InsertFunc(be, activate)
	}
	e.mu.Lock()
	e.nextHandle++
	h := e.nextHandle
	e.mu.Unlock()
	return h, nil
}

// OnRemoveBreakEvent implements engine.Engine.
func (e *Engine) OnRemoveBreakEvent(handle engine.Handle) error {
	e.record("remove-break-event")
	if e.RemoveFunc != nil {
		return e.RemoveFunc(handle)
	}
	return nil
}

// OnUpdateBreakEvent implements engine.Engine.
func (e *Engine) OnUpdateBreakEvent(handle engine.Handle, be breakev.BreakEvent) (engine.Handle, error) {
	e.record("update-break-event")
	if e.UpdateFunc != nil {
		return e.UpdateFunc(handle, be)
	}
	return handle, nil
}

// OnEnableBreakEvent implements engine.Engine.
func (e *Engine) OnEnableBreakEvent(handle engine.Handle, enabled bool) error {
	e.record("enable-break-event")
	if e.EnableFunc != nil {
		return e.EnableFunc(handle, enabled)
	}
	return nil
}

// AllowBreakEventChanges implements engine.Engine.
func (e *Engine) AllowBreakEventChanges() bool {
	return !e.ReadOnlyBreakEvents
}

// OnGetProcesses implements engine.Engine.
func (e *Engine) OnGetProcesses() ([]*engine.ProcessInfo, error) {
	e.record("get-processes")
	return append([]*engine.ProcessInfo{}, e.Processes...), nil
}

// OnGetThreads implements engine.Engine.
func (e *Engine) OnGetThreads(processID int64) ([]*engine.ThreadInfo, error) {
	e.record("get-threads")
	return append([]*engine.ThreadInfo{}, e.ThreadsByPID[processID]...), nil
}

// OnGetThreadBacktrace implements engine.Engine.
func (e *Engine) OnGetThreadBacktrace(processID, threadID int64) (*engine.Backtrace, error) {
	e.record("get-thread-backtrace")
	if e.BacktraceFn != nil {
		return e.BacktraceFn(processID, threadID)
	}
	return engine.NewBacktrace(nil), nil
}

// OnDisassembleFile implements engine.Engine.
func (e *Engine) OnDisassembleFile(path string) ([]engine.AssemblyLine, error) {
	e.record("disassemble-file")
	return e.Disassembly, nil
}

// OnResolveExpression implements engine.Engine.
func (e *Engine) OnResolveExpression(expression string, location engine.SourceLocation) (string, error) {
	e.record("resolve-expression")
	if e.ResolveFunc != nil {
		return e.ResolveFunc(expression, location)
	}
	return expression, nil
}

// OnCancelAsyncEvaluations implements engine.Engine.
func (e *Engine) OnCancelAsyncEvaluations() {
	e.record("cancel-async-evaluations")
}

// CanCancelAsyncEvaluations implements engine.Engine.
func (e *Engine) CanCancelAsyncEvaluations() bool {
	return e.CanCancel
}

var _ engine.Engine = (*Engine)(nil)
