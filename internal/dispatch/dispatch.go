package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the queue capacity used when Config.QueueSize is zero.
const DefaultQueueSize = 64

// Action is one serialized unit of session work.
type Action struct {
	// Name labels the action in errors.
	Name string

	// Run does the work. It executes under the configured lock.
	Run func() error

	// OnFailure, when set, is invoked after the lock is released if Run
	// returned an error or panicked.
	OnFailure func(err error)
}

// Config configures a dispatcher.
type Config struct {
	// UseOperationThread queues actions to a worker goroutine so that
	// Dispatch returns immediately. When false, the caller executes inline.
	UseOperationThread bool

	// QueueSize is the worker queue capacity. Zero means DefaultQueueSize.
	QueueSize int

	// Locker is acquired around every action. Usually the session lock.
	Locker sync.Locker

	// ExceptionHandler receives action errors before OnFailure runs. The
	// return value reports whether the error was handled; it is currently
	// informational only.
	ExceptionHandler func(err error) bool
}

// Dispatcher serializes actions. Construct with New; Close when done.
type Dispatcher struct {
	cfg    Config
	queue  chan Action
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	executed atomic.Uint64
	failed   atomic.Uint64
}

// New creates a dispatcher and, when the operation thread is enabled, starts
// its worker.
func New(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	if cfg.UseOperationThread {
		d.queue = make(chan Action, cfg.QueueSize)
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch submits an action. With the operation thread enabled it enqueues
// and returns immediately; otherwise it executes inline before returning.
func (d *Dispatcher) Dispatch(a Action) error {
	if a.Run == nil {
		return ErrNilAction
	}
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if !d.cfg.UseOperationThread {
		d.execute(a)
		return nil
	}
	select {
	case d.queue <- a:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	}
}

// Close stops accepting actions, drains the queue, and waits for the worker
// to finish. Idempotent.
func (d *Dispatcher) Close() {
	if d.closed.Swap(true) {
		return
	}
	close(d.done)
	d.wg.Wait()
}

// Executed returns the number of actions run so far.
func (d *Dispatcher) Executed() uint64 { return d.executed.Load() }

// Failed returns the number of actions that errored or panicked.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case a := <-d.queue:
			d.execute(a)
		case <-d.done:
			for {
				select {
				case a := <-d.queue:
					d.execute(a)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) execute(a Action) {
	d.executed.Add(1)
	err := d.runLocked(a)
	if err == nil {
		return
	}
	d.failed.Add(1)
	if d.cfg.ExceptionHandler != nil {
		d.cfg.ExceptionHandler(err)
	}
	if a.OnFailure != nil {
		a.OnFailure(err)
	}
}

// runLocked runs the action under the configured lock, converting panics to
// errors. The deferred recover runs after the deferred unlock, so the lock
// is never held when execute reports the failure.
func (d *Dispatcher) runLocked(a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			err = &PanicError{Action: a.Name, Value: r, Stack: string(stack[:n])}
		}
	}()
	if l := d.cfg.Locker; l != nil {
		l.Lock()
		defer l.Unlock()
	}
	return a.Run()
}
