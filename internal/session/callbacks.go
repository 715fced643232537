package session

import (
	"context"
	"fmt"

	"github.com/dshills/debugstorm/internal/breakev"
	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/evaluator"
)

// The methods in this file are the engine's callback surface. They may be
// invoked from any goroutine that is not executing an engine operation for
// this session, take only the locks they need, and never re-enter the
// dispatcher.

var _ engine.EventSink = (*Session)(nil)

// NotifyTargetEvent delivers an asynchronous target event: the state machine
// advances and the process cache is cleared under the session lock, then
// subscribers run outside it.
func (s *Session) NotifyTargetEvent(ev engine.TargetEvent) {
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return
	}
	s.cachedProcs = nil
	switch {
	case ev.Kind == engine.TargetExited:
		s.state = StateExited
		s.started = false
		s.attached = false
		s.activeThread = nil
	case ev.IsStopEvent:
		s.state = StateStopped
		if ev.Thread != nil {
			s.activeThread = ev.Thread
		}
	}
	s.slock.Unlock()

	if ev.Process != nil {
		ev.Process.Attach(s)
	}
	if ev.Thread != nil {
		ev.Thread.Attach(s)
	}
	if ev.Backtrace != nil {
		ev.Backtrace.Attach(s)
	}
	if ev.Kind == engine.TargetHitBreakpoint && ev.BreakEvent != nil {
		s.breakEventHit(ev)
	}

	s.bus.Publish(ev)
}

// NotifyStarted reports engine initialization. Break events recorded before
// this point are bound to the engine now.
func (s *Session) NotifyStarted(thread *engine.ThreadInfo) {
	if thread != nil {
		thread.Attach(s)
	}
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed || s.started {
		return
	}
	s.started = true
	if thread != nil {
		s.activeThread = thread
	}
	s.bindPendingBreakEvents()
}

// NotifyTargetOutput delivers target process output.
func (s *Session) NotifyTargetOutput(isStderr bool, text string) {
	s.WriteOutput(isStderr, text)
}

// NotifyDebuggerOutput delivers engine diagnostic output.
func (s *Session) NotifyDebuggerOutput(isStderr bool, text string) {
	s.WriteDebuggerOutput(isStderr, text)
}

// NotifyCustomBreakpointAction runs the custom action registered for the
// break event bound to handle. Reports whether the target should keep
// running.
func (s *Session) NotifyCustomBreakpointAction(actionID string, handle engine.Handle) bool {
	be := s.breakEventForHandle(handle)
	h := s.cfg.CustomBreakEventHitHandler
	return be != nil && h != nil && h(actionID, be)
}

// SetBusyState reports evaluation busy-state changes to registered handlers.
func (s *Session) SetBusyState(state engine.BusyState) {
	s.hmu.Lock()
	handlers := append([]func(engine.BusyState){}, s.busyHandlers...)
	s.hmu.Unlock()
	for _, h := range handlers {
		h(state)
	}
}

// breakEventHit updates hit bookkeeping for a break event the target stopped
// at: the hit count always, the trace value when a trace expression is set.
func (s *Session) breakEventHit(ev engine.TargetEvent) {
	be := ev.BreakEvent

	s.bplock.Lock()
	be.Common().HitCount++
	s.bplock.Unlock()

	if store := s.currentStore(); store != nil {
		store.NotifyStatusChanged(be)
	}

	bp, ok := be.(*breakev.Breakpoint)
	if !ok || bp.TraceExpression == "" {
		return
	}
	s.traceBreakpoint(bp, ev)
}

// traceBreakpoint evaluates a breakpoint's trace expression in the frame the
// target stopped in and reports the value to the trace handler.
func (s *Session) traceBreakpoint(bp *breakev.Breakpoint, ev engine.TargetEvent) {
	frame := &evaluator.Frame{File: bp.File, Line: bp.Line}
	if ev.Backtrace != nil && ev.Backtrace.FrameCount() > 0 {
		top := ev.Backtrace.Frames[0]
		frame.Function = top.Location.Function
		frame.File = top.Location.File
		frame.Line = top.Location.Line
	}

	ctx := context.Background()
	if opts := s.Options(); opts != nil && opts.Evaluation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Evaluation.Timeout)
		defer cancel()
	}

	eval := s.evaluatorForExtension(fileExtension(frame.File))
	value, err := eval.Evaluate(ctx, bp.TraceExpression, frame)
	if err != nil {
		s.WriteDebuggerOutput(true, fmt.Sprintf("Could not evaluate trace expression %q: %v\n", bp.TraceExpression, err))
		return
	}

	s.bplock.Lock()
	bp.LastTraceValue = value
	s.bplock.Unlock()

	if h := s.cfg.BreakpointTraceHandler; h != nil {
		h(bp, value)
	}
}
