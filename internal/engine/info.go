package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SessionRef is the slice of the session surface that attached value objects
// route queries through. The back-reference is deliberately narrow so that
// value objects cannot drive the session's command surface.
type SessionRef interface {
	// Threads returns the threads of a process.
	Threads(processID int64) ([]*ThreadInfo, error)

	// ThreadBacktrace returns the backtrace of a thread.
	ThreadBacktrace(processID, threadID int64) (*Backtrace, error)
}

// ProcessInfo describes a debuggable or debugged process. Produced by the
// engine, borrowed by callers.
type ProcessInfo struct {
	ID   int64
	Name string

	session SessionRef
}

// NewProcessInfo returns a ProcessInfo not yet attached to a session.
func NewProcessInfo(id int64, name string) *ProcessInfo {
	return &ProcessInfo{ID: id, Name: name}
}

// Attach installs the session back-reference used by Threads.
func (p *ProcessInfo) Attach(s SessionRef) { p.session = s }

// Threads returns the process's threads by routing through the session the
// process is attached to.
func (p *ProcessInfo) Threads() ([]*ThreadInfo, error) {
	if p.session == nil {
		return nil, ErrNotAttached
	}
	return p.session.Threads(p.ID)
}

// String returns "name (pid)".
func (p *ProcessInfo) String() string {
	return fmt.Sprintf("%s (%d)", p.Name, p.ID)
}

// ThreadInfo describes a thread of the target process.
type ThreadInfo struct {
	ProcessID int64
	ID        int64
	Name      string
	Location  string

	session SessionRef
}

// NewThreadInfo returns a ThreadInfo not yet attached to a session.
func NewThreadInfo(processID, id int64, name, location string) *ThreadInfo {
	return &ThreadInfo{ProcessID: processID, ID: id, Name: name, Location: location}
}

// Attach installs the session back-reference used by Backtrace.
func (t *ThreadInfo) Attach(s SessionRef) { t.session = s }

// Backtrace returns the thread's backtrace by routing through the session.
func (t *ThreadInfo) Backtrace() (*Backtrace, error) {
	if t.session == nil {
		return nil, ErrNotAttached
	}
	return t.session.ThreadBacktrace(t.ProcessID, t.ID)
}

// String returns the thread name, or its ID when unnamed.
func (t *ThreadInfo) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("thread %d", t.ID)
}

// SourceLocation identifies a position in target source code.
type SourceLocation struct {
	Function string
	File     string
	Line     int
	Column   int
}

// String returns "function (file:line)" with absent parts omitted.
func (l SourceLocation) String() string {
	switch {
	case l.Function != "" && l.File != "":
		return fmt.Sprintf("%s (%s:%d)", l.Function, l.File, l.Line)
	case l.File != "":
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return l.Function
	}
}

// FileExtension returns the lowercase extension of the location's file
// without the leading dot, or "" when there is none.
func (l SourceLocation) FileExtension() string {
	ext := filepath.Ext(l.File)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// StackFrame is one frame of a backtrace.
type StackFrame struct {
	Index    int
	Address  uint64
	Location SourceLocation

	// Language is the source language of the frame, when the engine knows it.
	Language string
}

// Backtrace is the call stack of a stopped thread.
type Backtrace struct {
	Frames []StackFrame

	session SessionRef
}

// NewBacktrace returns a backtrace over the given frames.
func NewBacktrace(frames []StackFrame) *Backtrace {
	return &Backtrace{Frames: frames}
}

// Attach installs the session back-reference.
func (b *Backtrace) Attach(s SessionRef) { b.session = s }

// FrameCount returns the number of frames.
func (b *Backtrace) FrameCount() int { return len(b.Frames) }

// Frame returns the frame at the given index.
func (b *Backtrace) Frame(index int) (StackFrame, error) {
	if index < 0 || index >= len(b.Frames) {
		return StackFrame{}, fmt.Errorf("%w: frame %d of %d", ErrFrameOutOfRange, index, len(b.Frames))
	}
	return b.Frames[index], nil
}

// AssemblyLine is one line of a disassembly listing.
type AssemblyLine struct {
	Address    uint64
	SourceLine int
	Code       string
}
