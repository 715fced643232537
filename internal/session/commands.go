package session

import (
	"errors"
	"fmt"

	"github.com/dshills/debugstorm/internal/dispatch"
	"github.com/dshills/debugstorm/internal/engine"
)

// failureMode selects the forcing event synthesized when an engine command
// fails, so observers always see a coherent state transition.
type failureMode int

const (
	failureNone failureMode = iota
	failureStop
	failureExit
)

// dispatchCommand submits an engine call to the dispatcher with the failure
// policy attached.
func (s *Session) dispatchCommand(name string, mode failureMode, run func() error) error {
	return s.dispatcher.Dispatch(dispatch.Action{
		Name: name,
		Run:  run,
		OnFailure: func(err error) {
			s.commandFailed(mode, err)
		},
	})
}

func (s *Session) commandFailed(mode failureMode, err error) {
	// State rejections are programmer errors, not engine crashes; they do
	// not warrant a synthesized transition.
	if errors.Is(err, ErrInvalidState) {
		return
	}
	switch mode {
	case failureStop:
		s.NotifyTargetEvent(engine.NewTargetEvent(engine.TargetStopped))
	case failureExit:
		s.NotifyTargetEvent(engine.NewTargetEvent(engine.TargetExited))
	}
}

// beginRunning transitions to Running from the given state and emits the
// target-started signal. The transition happens before the engine call that
// causes it. The first return value reports whether the command should
// proceed; disposed sessions decline silently.
func (s *Session) beginRunning(name string, from State) (bool, error) {
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return false, nil
	}
	if s.state != from {
		state := s.state
		s.slock.Unlock()
		return false, fmt.Errorf("%w: %s in state %s", ErrInvalidState, name, state)
	}
	s.state = StateRunning
	s.slock.Unlock()

	s.fireTargetStarted()
	return true, nil
}

// Run launches a new target described by info. Valid only while Idle.
func (s *Session) Run(info *engine.StartInfo, opts *Options) error {
	if info == nil {
		return ErrNilStartInfo
	}
	if opts == nil {
		return ErrNilOptions
	}
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return nil
	}
	if s.state != StateIdle {
		state := s.state
		s.slock.Unlock()
		return fmt.Errorf("%w: run in state %s", ErrInvalidState, state)
	}
	s.options = opts.clone()
	s.attached = false
	s.slock.Unlock()

	if ok, err := s.beginRunning("run", StateIdle); !ok {
		return err
	}
	return s.dispatchCommand("run", failureExit, func() error {
		return s.eng.OnRun(info)
	})
}

// AttachToProcess attaches to a running process. Valid only while Idle.
func (s *Session) AttachToProcess(proc *engine.ProcessInfo, opts *Options) error {
	if proc == nil {
		return ErrNilProcess
	}
	if opts == nil {
		return ErrNilOptions
	}
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return nil
	}
	if s.state != StateIdle {
		state := s.state
		s.slock.Unlock()
		return fmt.Errorf("%w: attach in state %s", ErrInvalidState, state)
	}
	s.options = opts.clone()
	s.attached = true
	s.slock.Unlock()

	if ok, err := s.beginRunning("attach", StateIdle); !ok {
		return err
	}
	return s.dispatchCommand("attach", failureExit, func() error {
		return s.eng.OnAttach(proc.ID)
	})
}

// Detach disconnects from an attached target, leaving it running.
func (s *Session) Detach() error {
	s.slock.Lock()
	if s.disposed || s.state == StateIdle || s.state == StateExited {
		s.slock.Unlock()
		return nil
	}
	s.slock.Unlock()
	return s.dispatchCommand("detach", failureNone, func() error {
		return s.eng.OnDetach()
	})
}

// Continue resumes execution. Valid only while Stopped; calling it while
// Running is a programmer error.
func (s *Session) Continue() error {
	if ok, err := s.beginRunning("continue", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("continue", failureStop, func() error {
		return s.eng.OnContinue()
	})
}

// StepLine steps into the next source line.
func (s *Session) StepLine() error {
	if ok, err := s.beginRunning("step-line", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("step-line", failureStop, func() error {
		return s.eng.OnStepLine()
	})
}

// NextLine steps over the next source line.
func (s *Session) NextLine() error {
	if ok, err := s.beginRunning("next-line", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("next-line", failureStop, func() error {
		return s.eng.OnNextLine()
	})
}

// StepInstruction steps into the next machine instruction.
func (s *Session) StepInstruction() error {
	if ok, err := s.beginRunning("step-instruction", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("step-instruction", failureStop, func() error {
		return s.eng.OnStepInstruction()
	})
}

// NextInstruction steps over the next machine instruction.
func (s *Session) NextInstruction() error {
	if ok, err := s.beginRunning("next-instruction", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("next-instruction", failureStop, func() error {
		return s.eng.OnNextInstruction()
	})
}

// Finish runs until the current function returns.
func (s *Session) Finish() error {
	if ok, err := s.beginRunning("finish", StateStopped); !ok {
		return err
	}
	return s.dispatchCommand("finish", failureExit, func() error {
		return s.eng.OnFinish()
	})
}

// Stop interrupts a running target. A no-op while Stopped and silently
// rejected while Idle or Exited.
func (s *Session) Stop() error {
	s.slock.Lock()
	running := !s.disposed && s.state == StateRunning
	s.slock.Unlock()
	if !running {
		return nil
	}
	return s.dispatchCommand("stop", failureNone, func() error {
		if s.state != StateRunning {
			return nil
		}
		return s.eng.OnStop()
	})
}

// Exit terminates the target.
func (s *Session) Exit() error {
	s.slock.Lock()
	if s.disposed || s.state == StateIdle || s.state == StateExited {
		s.slock.Unlock()
		return nil
	}
	s.slock.Unlock()
	return s.dispatchCommand("exit", failureExit, func() error {
		return s.eng.OnExit()
	})
}

// SetActiveThread selects the thread stepping commands operate on. Valid
// only while Stopped.
func (s *Session) SetActiveThread(thread *engine.ThreadInfo) error {
	if thread == nil {
		return ErrNilThread
	}
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return nil
	}
	if s.state != StateStopped {
		state := s.state
		s.slock.Unlock()
		return fmt.Errorf("%w: set-active-thread in state %s", ErrInvalidState, state)
	}
	s.activeThread = thread
	s.slock.Unlock()

	return s.dispatchCommand("set-active-thread", failureNone, func() error {
		return s.eng.OnSetActiveThread(thread.ProcessID, thread.ID)
	})
}

// ActiveThread returns the thread the session considers current, or nil.
func (s *Session) ActiveThread() *engine.ThreadInfo {
	s.slock.Lock()
	defer s.slock.Unlock()
	return s.activeThread
}

// Processes returns the target's processes. The result is memoized: the same
// slice is returned until the next target event invalidates it.
func (s *Session) Processes() ([]*engine.ProcessInfo, error) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return nil, ErrSessionDisposed
	}
	if s.cachedProcs != nil {
		return s.cachedProcs, nil
	}
	procs, err := s.eng.OnGetProcesses()
	if err != nil {
		return nil, fmt.Errorf("get processes: %w", err)
	}
	for _, p := range procs {
		p.Attach(s)
	}
	s.cachedProcs = procs
	return procs, nil
}

// Threads returns the threads of a process. Implements engine.SessionRef.
func (s *Session) Threads(processID int64) ([]*engine.ThreadInfo, error) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return nil, ErrSessionDisposed
	}
	threads, err := s.eng.OnGetThreads(processID)
	if err != nil {
		return nil, fmt.Errorf("get threads of process %d: %w", processID, err)
	}
	for _, t := range threads {
		t.Attach(s)
	}
	return threads, nil
}

// ThreadBacktrace returns the backtrace of a thread. Implements
// engine.SessionRef.
func (s *Session) ThreadBacktrace(processID, threadID int64) (*engine.Backtrace, error) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return nil, ErrSessionDisposed
	}
	bt, err := s.eng.OnGetThreadBacktrace(processID, threadID)
	if err != nil {
		return nil, fmt.Errorf("get backtrace of thread %d/%d: %w", processID, threadID, err)
	}
	if bt != nil {
		bt.Attach(s)
	}
	return bt, nil
}

// DisassembleFile returns the disassembly of a source file, or nil when the
// engine cannot disassemble it.
func (s *Session) DisassembleFile(path string) ([]engine.AssemblyLine, error) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return nil, ErrSessionDisposed
	}
	lines, err := s.eng.OnDisassembleFile(path)
	if err != nil {
		return nil, fmt.Errorf("disassemble %s: %w", path, err)
	}
	return lines, nil
}

// CancelAsyncEvaluations asks the engine to abandon in-flight evaluations.
// Fire-and-forget when the operation thread is enabled.
func (s *Session) CancelAsyncEvaluations() {
	if s.isDisposed() || !s.eng.CanCancelAsyncEvaluations() {
		return
	}
	if s.cfg.UseOperationThread {
		go s.eng.OnCancelAsyncEvaluations()
		return
	}
	s.eng.OnCancelAsyncEvaluations()
}

var _ engine.SessionRef = (*Session)(nil)
