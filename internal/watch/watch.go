// Package watch feeds filesystem changes of breakpoint source files into a
// debug session as source-loaded and source-unloaded notifications, driving
// the session's breakpoint re-binding path.
package watch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when watching after Close.
var ErrWatcherClosed = errors.New("source watcher is closed")

// Sink receives source file load and unload notifications. A debug session
// satisfies it.
type Sink interface {
	NotifySourceFileLoaded(path string)
	NotifySourceFileUnloaded(path string)
}

// SourceWatcher watches individual source files through their parent
// directories and reports create as load, and remove or rename as unload.
type SourceWatcher struct {
	sink    Sink
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	files  map[string]bool
	dirs   map[string]int
	closed bool
	done   chan struct{}
}

// New creates a watcher delivering to sink.
func New(sink Sink) (*SourceWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &SourceWatcher{
		sink:    sink,
		watcher: fw,
		files:   make(map[string]bool),
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch starts reporting load and unload for one source file.
func (w *SourceWatcher) Watch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[path] {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[path] = true
	return nil
}

// Unwatch stops reporting for one source file.
func (w *SourceWatcher) Unwatch(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[path] {
		return
	}
	delete(w.files, path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
}

// Close stops the watcher. Idempotent.
func (w *SourceWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}

func (w *SourceWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *SourceWatcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	watched := w.files[path]
	w.mu.Unlock()
	if !watched {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		w.sink.NotifySourceFileLoaded(path)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.sink.NotifySourceFileUnloaded(path)
	}
}
