package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/debugstorm/internal/engine"
	"github.com/dshills/debugstorm/internal/engine/enginetest"
)

// sequence records ordered checkpoints across handlers and engine hooks.
type sequence struct {
	mu    sync.Mutex
	steps []string
}

func (q *sequence) add(step string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steps = append(q.steps, step)
}

func (q *sequence) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.steps...)
}

// TestStepping drives the full step cycle: the target-started signal fires
// first, the engine step call follows, the engine's stop event lands the
// session back in the stopped state, and the process cache is invalidated.
func TestStepping(t *testing.T) {
	eng := enginetest.New()
	seq := &sequence{}
	eng.StepLineFunc = func() error {
		seq.add("engine-step-line")
		return nil
	}

	s, _ := newInlineSession(t, eng, nil)
	s.OnTargetStarted(func() { seq.add("target-started") })
	if _, err := s.Subscribe(engine.TargetStopped, func(engine.TargetEvent) {
		seq.add("target-stopped")
	}); err != nil {
		t.Fatal(err)
	}
	startStopped(t, s, eng)
	seq.mu.Lock()
	seq.steps = nil // discard setup traffic
	seq.mu.Unlock()

	// Prime the process cache so invalidation is observable.
	if _, err := s.Processes(); err != nil {
		t.Fatal(err)
	}
	queries := eng.CallCount("get-processes")

	if err := s.StepLine(); err != nil {
		t.Fatalf("StepLine() failed: %v", err)
	}
	if got := s.State(); got != StateRunning {
		t.Fatalf("state during step = %s, want running", got)
	}
	eng.PostEvent(engine.TargetStopped)

	want := []string{"target-started", "engine-step-line", "target-stopped"}
	got := seq.snapshot()
	if len(got) != len(want) {
		t.Fatalf("sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}

	if got := s.State(); got != StateStopped {
		t.Errorf("state after stop event = %s, want stopped", got)
	}
	if _, err := s.Processes(); err != nil {
		t.Fatal(err)
	}
	if eng.CallCount("get-processes") != queries+1 {
		t.Error("process cache not cleared by the stop event")
	}
}

// TestExitWhileStepping covers engine failure during a step: the exception
// handler runs, a forcing stop event is synthesized, and the session remains
// usable.
func TestExitWhileStepping(t *testing.T) {
	eng := enginetest.New()
	eng.StepLineFunc = func() error { return errors.New("target vanished") }

	var handled error
	s, _ := newInlineSession(t, eng, func(cfg *Config) {
		cfg.ExceptionHandler = func(err error) bool {
			handled = err
			return true
		}
	})

	forced := 0
	if _, err := s.Subscribe(engine.TargetStopped, func(engine.TargetEvent) { forced++ }); err != nil {
		t.Fatal(err)
	}
	startStopped(t, s, eng)
	forced = 0 // discard the setup stop event

	if err := s.StepLine(); err != nil {
		t.Fatalf("StepLine() should not propagate engine failure, got %v", err)
	}

	if handled == nil || !strings.Contains(handled.Error(), "target vanished") {
		t.Errorf("exception handler got %v", handled)
	}
	if forced != 1 {
		t.Errorf("synthesized stop events = %d, want 1", forced)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("state after forced stop = %s, want stopped", got)
	}

	// The session recovered; continue is accepted.
	if err := s.Continue(); err != nil {
		t.Errorf("Continue() after recovery failed: %v", err)
	}
}

// TestRunFailureForcesExit covers engine failure during launch: the session
// lands in the exited state rather than hanging in running.
func TestRunFailureForcesExit(t *testing.T) {
	eng := enginetest.New()
	eng.RunFunc = func(*engine.StartInfo) error { return errors.New("binary not found") }

	s, _ := newInlineSession(t, eng, func(cfg *Config) {
		cfg.ExceptionHandler = func(error) bool { return true }
	})

	exited := 0
	if _, err := s.Subscribe(engine.TargetExited, func(engine.TargetEvent) { exited++ }); err != nil {
		t.Fatal(err)
	}

	if err := s.Run(&engine.StartInfo{Command: "missing"}, DefaultOptions()); err != nil {
		t.Fatalf("Run() should not propagate engine failure, got %v", err)
	}
	if exited != 1 {
		t.Errorf("synthesized exit events = %d, want 1", exited)
	}
	if got := s.State(); got != StateExited {
		t.Errorf("state = %s, want exited", got)
	}
}

// TestRunningTransitionIsExclusive checks that a second stepping command is
// rejected until a stop event closes the first transition.
func TestRunningTransitionIsExclusive(t *testing.T) {
	eng := enginetest.New()
	s, _ := newInlineSession(t, eng, nil)
	startStopped(t, s, eng)

	if err := s.StepLine(); err != nil {
		t.Fatal(err)
	}
	if err := s.NextLine(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second stepping command: expected ErrInvalidState, got %v", err)
	}

	eng.PostEvent(engine.TargetStopped)
	if err := s.NextLine(); err != nil {
		t.Errorf("stepping after stop event failed: %v", err)
	}
}

// TestReadOnlyTimeout covers the store's read-only poll racing a blocking
// engine call: the check must answer read-only within the bounded wait
// instead of blocking behind the session lock.
func TestReadOnlyTimeout(t *testing.T) {
	eng := enginetest.New()
	block := make(chan struct{})
	entered := make(chan struct{})
	eng.ContinueFunc = func() error {
		close(entered)
		<-block
		return nil
	}

	logs := &logCapture{}
	s, err := New(eng, Config{UseOperationThread: true, LogWriter: logs.write})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		close(block)
		s.Dispose()
	}()

	store := s.BreakpointStore()
	if err := s.Run(&engine.StartInfo{Command: "target"}, DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	eng.PostStarted(nil)
	eng.PostEvent(engine.TargetStopped)

	// Wait until the state settles, then occupy the session lock with a
	// blocking engine continue.
	waitFor(t, func() bool { return s.State() == StateStopped })
	if err := s.Continue(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("engine continue never started")
	}

	start := time.Now()
	readOnly := store.ReadOnly()
	elapsed := time.Since(start)

	if !readOnly {
		t.Error("read-only check should report read-only while the engine blocks")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("read-only check took %v, want a bounded wait", elapsed)
	}
}

// TestReadOnlyReflectsEngine checks the uncontended path: the answer comes
// from the engine's break event change flag.
func TestReadOnlyReflectsEngine(t *testing.T) {
	eng := enginetest.New()
	s, _ := newInlineSession(t, eng, nil)
	store := s.BreakpointStore()

	if store.ReadOnly() {
		t.Error("editable engine should report writable")
	}

	eng.ReadOnlyBreakEvents = true
	if !store.ReadOnly() {
		t.Error("read-only engine should report read-only")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(time.Millisecond)
	}
}
