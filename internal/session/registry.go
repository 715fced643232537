package session

import (
	"fmt"

	"github.com/dshills/debugstorm/internal/breakev"
	"github.com/dshills/debugstorm/internal/dispatch"
	"github.com/dshills/debugstorm/internal/engine"
)

// StatusOK is the displayed status of a bound, valid break event.
const StatusOK = "ok"

// StatusNotHit is the displayed status of a break event that is unbound or
// marked invalid by the engine.
const StatusNotHit = "will not currently be hit"

// BreakEventInfo is the session-private binding state of one break event.
type BreakEventInfo struct {
	// Handle is the engine-assigned binding, nil when unbound: before the
	// engine started, after a failed insert, or after a source unload.
	Handle engine.Handle

	// Valid is cleared by the engine when the break event can never bind,
	// such as a line with no code.
	Valid bool

	// StatusMessage is an optional human-readable detail from the engine.
	StatusMessage string
}

// Status returns the displayed status: the engine's message when present,
// otherwise "ok" for a valid bound event and "will not currently be hit"
// for everything else.
func (i BreakEventInfo) Status() string {
	if i.StatusMessage != "" {
		return i.StatusMessage
	}
	if i.Valid && i.Handle != nil {
		return StatusOK
	}
	return StatusNotHit
}

// BreakpointStore returns the session's break event store, creating an owned
// one on first access. Returns nil on a disposed session.
func (s *Session) BreakpointStore() breakev.Store {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return nil
	}
	if s.currentStore() == nil {
		s.installStoreLocked(breakev.NewListStore(), true)
	}
	return s.currentStore()
}

// SetBreakpointStore replaces the session's store. Bindings for the old
// store's break events are removed from the engine; the new store's break
// events are bound when the engine has started. An auto-created store is
// released when replaced.
func (s *Session) SetBreakpointStore(store breakev.Store) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return
	}
	s.replaceStoreLocked(store, false)
}

// OwnsStore reports whether the session created its current store.
func (s *Session) OwnsStore() bool {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	return s.ownedStore
}

// BreakEventInfoFor returns a copy of the binding state of a break event.
// Takes only the breakpoints lock, so it never waits on the engine.
func (s *Session) BreakEventInfoFor(be breakev.BreakEvent) (BreakEventInfo, bool) {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	info, ok := s.breakInfos[be]
	if !ok {
		return BreakEventInfo{}, false
	}
	return *info, true
}

// BreakEventStatus returns the displayed status of a break event.
func (s *Session) BreakEventStatus(be breakev.BreakEvent) string {
	info, ok := s.BreakEventInfoFor(be)
	if !ok {
		return StatusNotHit
	}
	return info.Status()
}

// SetBreakEventStatus records an engine-initiated validity change. Fires a
// status-changed signal only when something actually changed.
func (s *Session) SetBreakEventStatus(be breakev.BreakEvent, valid bool, statusMessage string) {
	s.bplock.Lock()
	info, ok := s.breakInfos[be]
	if !ok || (info.Valid == valid && info.StatusMessage == statusMessage) {
		s.bplock.Unlock()
		return
	}
	info.Valid = valid
	info.StatusMessage = statusMessage
	s.bplock.Unlock()

	s.notifyStatusChanged(be)
}

// AdjustBreakpointLocation moves a breakpoint to the line the engine
// actually bound it to. The store still raises its modified signal, but the
// session ignores it: the change originated from the engine, not the user.
func (s *Session) AdjustBreakpointLocation(bp *breakev.Breakpoint, newLine int) {
	store := s.currentStore()
	if store == nil || bp == nil {
		return
	}
	s.adjusting.Store(true)
	defer s.adjusting.Store(false)

	s.bplock.Lock()
	bp.Line = newLine
	s.bplock.Unlock()

	store.NotifyModified(bp)
}

// NotifySourceFileLoaded retries binding for every unbound breakpoint in the
// loaded file.
func (s *Session) NotifySourceFileLoaded(path string) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed || !s.started {
		return
	}
	policy := s.pathPolicyLocked()
	for _, bp := range s.breakpointsForPath(policy, path, false) {
		s.bplock.Lock()
		info := s.breakInfos[bp]
		s.bplock.Unlock()
		if info != nil {
			s.insertBreakEvent(bp, info)
		}
	}
}

// NotifySourceFileUnloaded forgets the handles of breakpoints in the
// unloaded file. The engine is not called: it is assumed to have dropped
// the bindings itself.
func (s *Session) NotifySourceFileUnloaded(path string) {
	s.slock.Lock()
	defer s.slock.Unlock()
	if s.disposed {
		return
	}
	policy := s.pathPolicyLocked()
	for _, bp := range s.breakpointsForPath(policy, path, true) {
		s.bplock.Lock()
		info := s.breakInfos[bp]
		if info != nil {
			info.Handle = nil
		}
		s.bplock.Unlock()
		s.notifyStatusChanged(bp)
	}
}

// breakpointsForPath returns the registered breakpoints whose file matches
// path under the given policy, filtered by whether they are bound.
func (s *Session) breakpointsForPath(policy PathComparison, path string, bound bool) []*breakev.Breakpoint {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	var bps []*breakev.Breakpoint
	for be, info := range s.breakInfos {
		bp, ok := be.(*breakev.Breakpoint)
		if !ok || !pathsEqual(policy, bp.File, path) {
			continue
		}
		if (info.Handle != nil) == bound {
			bps = append(bps, bp)
		}
	}
	return bps
}

// pathPolicyLocked returns the configured path comparison policy. Requires
// the session lock.
func (s *Session) pathPolicyLocked() PathComparison {
	if s.options == nil {
		return PathComparisonAuto
	}
	return s.options.PathComparison
}

// currentStore returns the store reference under the breakpoints lock.
func (s *Session) currentStore() breakev.Store {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	return s.store
}

// notifyStatusChanged fires the store's status-changed signal for a break
// event. Always called after the registry mutation it reports.
func (s *Session) notifyStatusChanged(be breakev.BreakEvent) {
	if store := s.currentStore(); store != nil {
		store.NotifyStatusChanged(be)
	}
}

// infoFor returns the binding state of a break event, creating it on first
// registration.
func (s *Session) infoFor(be breakev.BreakEvent) *BreakEventInfo {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	info, ok := s.breakInfos[be]
	if !ok {
		info = &BreakEventInfo{Valid: true}
		s.breakInfos[be] = info
	}
	return info
}

// breakEventForHandle finds the break event bound to a handle.
func (s *Session) breakEventForHandle(handle engine.Handle) breakev.BreakEvent {
	s.bplock.Lock()
	defer s.bplock.Unlock()
	for be, info := range s.breakInfos {
		if info.Handle != nil && engine.HandlesEqual(info.Handle, handle) {
			return be
		}
	}
	return nil
}

// replaceStoreLocked swaps the store: engine bindings of the old store's
// break events are removed and their final status flushed, then the new
// store is installed. Requires the session lock.
func (s *Session) replaceStoreLocked(store breakev.Store, owned bool) {
	old := s.currentStore()
	if old != nil {
		s.bplock.Lock()
		entries := make(map[breakev.BreakEvent]*BreakEventInfo, len(s.breakInfos))
		for be, info := range s.breakInfos {
			entries[be] = info
		}
		s.breakInfos = make(map[breakev.BreakEvent]*BreakEventInfo)
		sub := s.storeSub
		s.storeSub = nil
		s.store = nil
		s.ownedStore = false
		s.bplock.Unlock()

		for be, info := range entries {
			if info.Handle != nil {
				if err := s.eng.OnRemoveBreakEvent(info.Handle); err != nil {
					s.WriteDebuggerOutput(true, fmt.Sprintf("Could not remove %s: %v\n", be, err))
					s.handleException(err)
				}
				info.Handle = nil
			}
			old.NotifyStatusChanged(be)
		}
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.installStoreLocked(store, owned)
}

// installStoreLocked installs a store, subscribes to its signals, and binds
// its break events when the engine has started. Requires the session lock.
func (s *Session) installStoreLocked(store breakev.Store, owned bool) {
	if store == nil {
		return
	}
	sub := store.Subscribe(breakev.StoreHandlers{
		BreakEventAdded:               s.storeBreakEventAdded,
		BreakEventRemoved:             s.storeBreakEventRemoved,
		BreakEventModified:            s.storeBreakEventModified,
		BreakEventEnableStatusChanged: s.storeEnableChanged,
		CheckingReadOnly:              s.storeCheckingReadOnly,
	})

	s.bplock.Lock()
	s.store = store
	s.storeSub = sub
	s.ownedStore = owned
	s.bplock.Unlock()

	for _, be := range store.BreakEvents() {
		s.registerBreakEvent(be)
	}
}

// bindPendingBreakEvents inserts every break event that was recorded before
// the engine started. Requires the session lock.
func (s *Session) bindPendingBreakEvents() {
	store := s.currentStore()
	if store == nil {
		return
	}
	for _, be := range store.BreakEvents() {
		info := s.infoFor(be)
		s.bplock.Lock()
		unbound := info.Handle == nil
		s.bplock.Unlock()
		if unbound {
			s.insertBreakEvent(be, info)
		}
	}
}

// registerBreakEvent records a break event and, when the engine has started,
// binds it. Requires the session lock.
func (s *Session) registerBreakEvent(be breakev.BreakEvent) {
	info := s.infoFor(be)
	if !s.started {
		return
	}
	s.bplock.Lock()
	bound := info.Handle != nil
	s.bplock.Unlock()
	if bound {
		return
	}
	s.insertBreakEvent(be, info)
}

// insertBreakEvent asks the engine to bind a break event. Failure is
// recorded as a nil handle and logged; it never propagates. A status-changed
// signal fires either way, after the registry mutation. Requires the
// session lock.
func (s *Session) insertBreakEvent(be breakev.BreakEvent, info *BreakEventInfo) {
	handle, err := s.eng.OnInsertBreakEvent(be, be.Common().Enabled)
	if err != nil {
		s.bplock.Lock()
		info.Handle = nil
		s.bplock.Unlock()
		s.WriteDebuggerOutput(true, insertFailureMessage(be, err)+"\n")
		s.handleException(err)
		s.notifyStatusChanged(be)
		return
	}

	s.bplock.Lock()
	info.Handle = handle
	s.bplock.Unlock()
	s.notifyStatusChanged(be)
}

func insertFailureMessage(be breakev.BreakEvent, err error) string {
	if _, ok := be.(*breakev.Catchpoint); ok {
		return fmt.Sprintf("Could not set catchpoint for exception '%s': %v", be.Location(), err)
	}
	return fmt.Sprintf("Could not set breakpoint at location '%s': %v", be.Location(), err)
}

// removeBreakEvent removes a break event's binding and registry entry. The
// entry is dropped even when the engine call fails. Requires the session
// lock.
func (s *Session) removeBreakEvent(be breakev.BreakEvent) {
	s.bplock.Lock()
	info, ok := s.breakInfos[be]
	var handle engine.Handle
	if ok {
		handle = info.Handle
	}
	s.bplock.Unlock()

	if ok && handle != nil {
		if err := s.eng.OnRemoveBreakEvent(handle); err != nil {
			s.WriteDebuggerOutput(true, fmt.Sprintf("Could not remove %s: %v\n", be, err))
			s.handleException(err)
		}
	}

	s.bplock.Lock()
	delete(s.breakInfos, be)
	s.bplock.Unlock()
}

// updateBreakEvent pushes a definition change to the engine. A bound event
// is updated in place, re-binding if the engine returns a different handle;
// an unbound event retries insertion, which is the re-binding path used
// after a source file load. Requires the session lock.
func (s *Session) updateBreakEvent(be breakev.BreakEvent) {
	s.bplock.Lock()
	info, ok := s.breakInfos[be]
	var handle engine.Handle
	if ok {
		handle = info.Handle
	}
	s.bplock.Unlock()

	if !ok {
		s.registerBreakEvent(be)
		return
	}
	if handle == nil {
		if s.started {
			s.insertBreakEvent(be, info)
		}
		return
	}

	newHandle, err := s.eng.OnUpdateBreakEvent(handle, be)
	if err != nil {
		s.WriteDebuggerOutput(true, fmt.Sprintf("Could not update %s: %v\n", be, err))
		s.handleException(err)
		return
	}
	if !engine.HandlesEqual(newHandle, handle) {
		s.bplock.Lock()
		info.Handle = newHandle
		s.bplock.Unlock()
		s.notifyStatusChanged(be)
	}
}

// updateEnabled pushes an enable flag change to the engine for a bound
// event. Requires the session lock.
func (s *Session) updateEnabled(be breakev.BreakEvent) {
	s.bplock.Lock()
	info, ok := s.breakInfos[be]
	var handle engine.Handle
	if ok {
		handle = info.Handle
	}
	s.bplock.Unlock()

	if !ok || handle == nil {
		return
	}
	if err := s.eng.OnEnableBreakEvent(handle, be.Common().Enabled); err != nil {
		s.WriteDebuggerOutput(true, fmt.Sprintf("Could not change enabled state of %s: %v\n", be, err))
		s.handleException(err)
	}
}

// Store signal handlers. They run on the store owner's goroutine and submit
// the mutating work to the dispatcher; the adjusting flag suppresses the
// echo of the session's own engine-driven store edits.

func (s *Session) storeBreakEventAdded(be breakev.BreakEvent) {
	if be == nil || s.adjusting.Load() {
		return
	}
	_ = s.dispatcher.Dispatch(dispatch.Action{Name: "break-event-added", Run: func() error {
		if s.disposed {
			return nil
		}
		s.registerBreakEvent(be)
		return nil
	}})
}

func (s *Session) storeBreakEventRemoved(be breakev.BreakEvent) {
	if be == nil || s.adjusting.Load() {
		return
	}
	_ = s.dispatcher.Dispatch(dispatch.Action{Name: "break-event-removed", Run: func() error {
		if s.disposed {
			return nil
		}
		s.removeBreakEvent(be)
		return nil
	}})
}

func (s *Session) storeBreakEventModified(be breakev.BreakEvent) {
	if be == nil || s.adjusting.Load() {
		return
	}
	_ = s.dispatcher.Dispatch(dispatch.Action{Name: "break-event-modified", Run: func() error {
		if s.disposed {
			return nil
		}
		s.updateBreakEvent(be)
		return nil
	}})
}

func (s *Session) storeEnableChanged(be breakev.BreakEvent) {
	if be == nil || s.adjusting.Load() {
		return
	}
	_ = s.dispatcher.Dispatch(dispatch.Action{Name: "break-event-enable-changed", Run: func() error {
		if s.disposed {
			return nil
		}
		s.updateEnabled(be)
		return nil
	}})
}

// storeCheckingReadOnly answers the store's read-only poll. It is called
// from UI timers and must not block behind a slow engine call, so the
// session lock is taken with a short bounded wait; failing to get it means
// the engine is busy and break events are reported read-only.
func (s *Session) storeCheckingReadOnly(setReadOnly func(bool)) {
	if !s.tryLockTimeout(readOnlyLockTimeout) {
		setReadOnly(true)
		return
	}
	allow := !s.disposed && s.eng.AllowBreakEventChanges()
	s.slock.Unlock()
	setReadOnly(!allow)
}
