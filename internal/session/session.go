package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/debugstorm/internal/breakev"
	"github.com/dshills/debugstorm/internal/dispatch"
	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/evaluator"
	"github.com/dshills/debugstorm/internal/event"
)

// readOnlyLockTimeout bounds session lock acquisition in the store's
// read-only check, which is called from UI timers and must not block behind
// a slow engine call.
const readOnlyLockTimeout = 10 * time.Millisecond

// ConnectionDialog is shown by engines that wait for a remote connection.
type ConnectionDialog interface {
	// SetMessage updates the dialog text.
	SetMessage(message string)

	// Close dismisses the dialog.
	Close()
}

// Config wires a session to its host. Every field is optional except where
// noted; nil handlers disable the corresponding feature.
type Config struct {
	// UseOperationThread queues engine-blocking commands to a worker so
	// public methods return immediately. DefaultConfig enables it.
	UseOperationThread bool

	// ExceptionHandler receives errors recovered from engine calls. The
	// return value reports whether the host handled the error; unhandled
	// errors are written to the log writer.
	ExceptionHandler func(err error) bool

	// ConnectionDialogCreator builds the dialog an engine shows while
	// waiting for a remote connection.
	ConnectionDialogCreator func() ConnectionDialog

	// BreakpointTraceHandler receives the value of a breakpoint's trace
	// expression on each hit.
	BreakpointTraceHandler func(be breakev.BreakEvent, trace string)

	// TypeResolverHandler resolves an identifier at a source location to a
	// fully qualified form. An empty result means the resolver declined.
	TypeResolverHandler func(identifier string, location engine.SourceLocation) (string, error)

	// GetExpressionEvaluator overrides evaluator selection by file
	// extension. A nil result falls back to the session's registry.
	GetExpressionEvaluator func(ext string) evaluator.Evaluator

	// CustomBreakEventHitHandler runs the custom action of a break event.
	// The return value reports whether the target should keep running.
	CustomBreakEventHitHandler func(actionID string, be breakev.BreakEvent) bool

	// OutputWriter receives target process output.
	OutputWriter func(isStderr bool, text string)

	// LogWriter receives debugger diagnostic output.
	LogWriter func(isStderr bool, text string)
}

// DefaultConfig returns a config with the operation thread enabled.
func DefaultConfig() Config {
	return Config{UseOperationThread: true}
}

// Session is the debugger session front-end. Construct with New, drive with
// the command methods, observe with Subscribe, and release with Dispose.
type Session struct {
	id  string
	eng engine.Engine
	cfg Config

	// slock is the session lock: state machine flags, options, active
	// thread, process cache, and engine call serialization.
	slock sync.Mutex

	state        State
	started      bool
	attached     bool
	disposed     bool
	options      *Options
	activeThread *engine.ThreadInfo
	cachedProcs  []*engine.ProcessInfo

	dispatcher *dispatch.Dispatcher
	bus        *event.Bus

	// bplock is the breakpoints lock: the break event info map and the
	// store reference, for status lookups that must not wait on the engine.
	bplock     sync.Mutex
	breakInfos map[breakev.BreakEvent]*BreakEventInfo
	store      breakev.Store
	storeSub   *breakev.Subscription
	ownedStore bool

	// adjusting suppresses store-modification echo while the session itself
	// relocates a breakpoint on behalf of the engine.
	adjusting atomic.Bool

	// olock is the output lock.
	olock        sync.Mutex
	outputWriter func(isStderr bool, text string)
	logWriter    func(isStderr bool, text string)

	// Resolver and evaluator caches.
	rmu        sync.Mutex
	resolved   map[resolverKey]*string
	evalByExt  map[string]evaluator.Evaluator
	evaluators *evaluator.Registry

	// Handlers for the user-facing signals that are not target events.
	hmu             sync.Mutex
	startedHandlers []func()
	busyHandlers    []func(engine.BusyState)
}

// New creates a session over the given engine and binds the engine's
// callback surface to it.
func New(eng engine.Engine, cfg Config) (*Session, error) {
	if eng == nil {
		return nil, ErrNilEngine
	}
	s := &Session{
		id:           uuid.NewString(),
		eng:          eng,
		cfg:          cfg,
		state:        StateIdle,
		breakInfos:   make(map[breakev.BreakEvent]*BreakEventInfo),
		outputWriter: cfg.OutputWriter,
		logWriter:    cfg.LogWriter,
		resolved:     make(map[resolverKey]*string),
		evalByExt:    make(map[string]evaluator.Evaluator),
		evaluators:   evaluator.NewRegistry(),
	}
	s.bus = event.NewBus(func(ev engine.TargetEvent, recovered any, _ []byte) {
		s.WriteDebuggerOutput(true, fmt.Sprintf("event subscriber panic on %s: %v\n", ev.Kind, recovered))
	})
	s.dispatcher = dispatch.New(dispatch.Config{
		UseOperationThread: cfg.UseOperationThread,
		Locker:             &s.slock,
		ExceptionHandler:   s.handleException,
	})
	eng.Bind(s)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current execution state.
func (s *Session) State() State {
	s.slock.Lock()
	defer s.slock.Unlock()
	return s.state
}

// IsRunning reports whether the target is currently executing.
func (s *Session) IsRunning() bool { return s.State() == StateRunning }

// HasExited reports whether the target has exited.
func (s *Session) HasExited() bool { return s.State() == StateExited }

// IsStarted reports whether the engine has initialized and break events can
// be bound.
func (s *Session) IsStarted() bool {
	s.slock.Lock()
	defer s.slock.Unlock()
	return s.started
}

// IsAttached reports whether the session attached to an existing process.
func (s *Session) IsAttached() bool {
	s.slock.Lock()
	defer s.slock.Unlock()
	return s.attached
}

// Options returns a copy of the options the session was started with, or
// nil before run or attach. SetEvaluationOptions called before run or attach
// installs default options, which this then returns.
func (s *Session) Options() *Options {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.options == nil {
		return nil
	}
	return s.options.clone()
}

// SetEvaluationOptions swaps the evaluation sub-options. The rest of the
// session options stay immutable after start.
func (s *Session) SetEvaluationOptions(opts EvaluationOptions) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.options == nil {
		s.options = DefaultOptions()
	}
	s.options.Evaluation = opts
}

// ConnectionDialogCreator returns the configured connection dialog factory,
// or nil. Engines that wait for remote connections use it.
func (s *Session) ConnectionDialogCreator() func() ConnectionDialog {
	return s.cfg.ConnectionDialogCreator
}

// Subscribe registers a handler for one target event kind. Handlers run
// synchronously on the engine's callback goroutine, outside the session lock.
func (s *Session) Subscribe(kind engine.EventKind, handler event.Handler) (*event.Subscription, error) {
	return s.bus.Subscribe(kind, handler)
}

// SubscribeAll registers a catch-all target event handler, invoked after the
// kind-specific handlers.
func (s *Session) SubscribeAll(handler event.Handler) (*event.Subscription, error) {
	return s.bus.SubscribeAll(handler)
}

// Unsubscribe removes a target event subscription.
func (s *Session) Unsubscribe(sub *event.Subscription) error {
	return s.bus.Unsubscribe(sub)
}

// OnTargetStarted registers a handler invoked whenever the session begins
// running the target, before the engine call that starts execution.
func (s *Session) OnTargetStarted(fn func()) {
	if fn == nil {
		return
	}
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.startedHandlers = append(s.startedHandlers, fn)
}

// OnBusyStateChanged registers a handler for evaluation busy-state changes.
func (s *Session) OnBusyStateChanged(fn func(engine.BusyState)) {
	if fn == nil {
		return
	}
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.busyHandlers = append(s.busyHandlers, fn)
}

// SetOutputWriter replaces the target output writer.
func (s *Session) SetOutputWriter(w func(isStderr bool, text string)) {
	s.olock.Lock()
	defer s.olock.Unlock()
	s.outputWriter = w
}

// SetLogWriter replaces the debugger log writer.
func (s *Session) SetLogWriter(w func(isStderr bool, text string)) {
	s.olock.Lock()
	defer s.olock.Unlock()
	s.logWriter = w
}

// WriteOutput forwards target output to the output writer.
func (s *Session) WriteOutput(isStderr bool, text string) {
	s.olock.Lock()
	w := s.outputWriter
	s.olock.Unlock()
	if w != nil {
		w(isStderr, text)
	}
}

// WriteDebuggerOutput forwards diagnostic output to the log writer.
func (s *Session) WriteDebuggerOutput(isStderr bool, text string) {
	s.olock.Lock()
	w := s.logWriter
	s.olock.Unlock()
	if w != nil {
		w(isStderr, text)
	}
}

// Dispose releases the session. Idempotent. After Dispose every command is a
// no-op and the store subscription is released; the store itself is kept
// unless the session created it.
func (s *Session) Dispose() {
	s.slock.Lock()
	if s.disposed {
		s.slock.Unlock()
		return
	}
	s.disposed = true
	s.cachedProcs = nil
	s.activeThread = nil
	s.slock.Unlock()

	s.bplock.Lock()
	sub := s.storeSub
	s.storeSub = nil
	s.store = nil
	s.ownedStore = false
	s.breakInfos = make(map[breakev.BreakEvent]*BreakEventInfo)
	s.bplock.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.dispatcher.Close()
}

// isDisposed reports the disposed flag under the session lock.
func (s *Session) isDisposed() bool {
	s.slock.Lock()
	defer s.slock.Unlock()
	return s.disposed
}

// handleException routes an engine error to the configured exception
// handler, logging it when no handler claims it.
func (s *Session) handleException(err error) bool {
	if s.cfg.ExceptionHandler != nil && s.cfg.ExceptionHandler(err) {
		return true
	}
	s.WriteDebuggerOutput(true, fmt.Sprintf("debugger error: %v\n", err))
	return false
}

// tryLockTimeout attempts to take the session lock within d.
func (s *Session) tryLockTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if s.slock.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(200 * time.Microsecond)
	}
}

// fireTargetStarted invokes the target-started handlers.
func (s *Session) fireTargetStarted() {
	s.hmu.Lock()
	handlers := append([]func(){}, s.startedHandlers...)
	s.hmu.Unlock()
	for _, h := range handlers {
		h()
	}
}
