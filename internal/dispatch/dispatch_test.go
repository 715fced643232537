package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcher_Inline(t *testing.T) {
	var mu sync.Mutex
	d := New(Config{Locker: &mu})
	defer d.Close()

	ran := false
	if err := d.Dispatch(Action{Name: "inline", Run: func() error {
		ran = true
		return nil
	}}); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if !ran {
		t.Error("inline action did not run before Dispatch returned")
	}
}

func TestDispatcher_NilAction(t *testing.T) {
	d := New(Config{})
	defer d.Close()

	if err := d.Dispatch(Action{Name: "empty"}); err != ErrNilAction {
		t.Errorf("expected ErrNilAction, got %v", err)
	}
}

func TestDispatcher_WorkerOrdering(t *testing.T) {
	var mu sync.Mutex
	d := New(Config{UseOperationThread: true, Locker: &mu})
	defer d.Close()

	var order []int
	var orderMu sync.Mutex
	done := make(chan struct{})

	for i := 1; i <= 5; i++ {
		i := i
		err := d.Dispatch(Action{Name: "ordered", Run: func() error {
			orderMu.Lock()
			order = append(order, i)
			orderMu.Unlock()
			if i == 5 {
				close(done)
			}
			return nil
		}})
		if err != nil {
			t.Fatalf("Dispatch(%d) failed: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actions did not complete")
	}

	orderMu.Lock()
	defer orderMu.Unlock()
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("order = %v, want 1..5", order)
		}
	}
}

func TestDispatcher_LockHeldDuringAction(t *testing.T) {
	var mu sync.Mutex
	d := New(Config{Locker: &mu})
	defer d.Close()

	err := d.Dispatch(Action{Name: "locked", Run: func() error {
		if mu.TryLock() {
			mu.Unlock()
			return errors.New("lock was not held during the action")
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if !mu.TryLock() {
		t.Fatal("lock still held after the action")
	}
	mu.Unlock()
}

func TestDispatcher_FailurePolicy(t *testing.T) {
	var mu sync.Mutex
	boom := errors.New("boom")

	var handled error
	var failed error
	d := New(Config{
		Locker: &mu,
		ExceptionHandler: func(err error) bool {
			handled = err
			return true
		},
	})
	defer d.Close()

	err := d.Dispatch(Action{
		Name:      "failing",
		Run:       func() error { return boom },
		OnFailure: func(err error) { failed = err },
	})
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if !errors.Is(handled, boom) {
		t.Errorf("exception handler got %v, want boom", handled)
	}
	if !errors.Is(failed, boom) {
		t.Errorf("OnFailure got %v, want boom", failed)
	}
	if d.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", d.Failed())
	}
}

func TestDispatcher_PanicRecovery(t *testing.T) {
	var mu sync.Mutex
	var failed error
	d := New(Config{Locker: &mu})
	defer d.Close()

	err := d.Dispatch(Action{
		Name:      "panicking",
		Run:       func() error { panic("kaboom") },
		OnFailure: func(err error) { failed = err },
	})
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	var pe *PanicError
	if !errors.As(failed, &pe) {
		t.Fatalf("OnFailure got %T, want *PanicError", failed)
	}
	if pe.Value != "kaboom" {
		t.Errorf("panic value = %v, want kaboom", pe.Value)
	}
	if !mu.TryLock() {
		t.Fatal("lock leaked after panic")
	}
	mu.Unlock()
}

func TestDispatcher_OnFailureRunsOutsideLock(t *testing.T) {
	var mu sync.Mutex
	d := New(Config{Locker: &mu})
	defer d.Close()

	lockFree := false
	err := d.Dispatch(Action{
		Name: "failing",
		Run:  func() error { return errors.New("nope") },
		OnFailure: func(error) {
			if mu.TryLock() {
				lockFree = true
				mu.Unlock()
			}
		},
	})
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if !lockFree {
		t.Error("OnFailure ran while the lock was still held")
	}
}

func TestDispatcher_Close(t *testing.T) {
	d := New(Config{UseOperationThread: true})

	release := make(chan struct{})
	ran := make(chan struct{})
	if err := d.Dispatch(Action{Name: "slow", Run: func() error {
		<-release
		close(ran)
		return nil
	}}); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	d.Close()
	select {
	case <-ran:
	default:
		t.Error("Close() did not wait for the in-flight action")
	}

	if err := d.Dispatch(Action{Name: "late", Run: func() error { return nil }}); err != ErrDispatcherClosed {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}

	d.Close() // idempotent
}
