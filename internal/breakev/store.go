package breakev

import "sync"

// StoreHandlers contains callbacks for store signals. Any field may be nil.
//
// CheckingReadOnly is polled by UI code before allowing edits; the subscriber
// reports through the setReadOnly callback. Several subscribers may answer;
// any one of them reporting read-only wins.
type StoreHandlers struct {
	// BreakEventAdded is called after a break event is added to the store.
	BreakEventAdded func(be BreakEvent)

	// BreakEventRemoved is called after a break event is removed.
	BreakEventRemoved func(be BreakEvent)

	// BreakEventModified is called when a break event's definition changed.
	BreakEventModified func(be BreakEvent)

	// BreakEventEnableStatusChanged is called when a break event is enabled
	// or disabled.
	BreakEventEnableStatusChanged func(be BreakEvent)

	// BreakEventStatusChanged is called when the session re-evaluated the
	// runtime status of a break event (bound, unbound, invalid).
	BreakEventStatusChanged func(be BreakEvent)

	// CheckingReadOnly is called when the store needs to know whether break
	// events may currently be edited.
	CheckingReadOnly func(setReadOnly func(bool))
}

// Subscription identifies an active store subscription.
type Subscription struct {
	id       uint64
	store    *ListStore
	handlers StoreHandlers
}

// Unsubscribe removes this subscription from its store.
func (s *Subscription) Unsubscribe() {
	if s.store != nil {
		s.store.unsubscribe(s.id)
		s.store = nil
	}
}

// Store is an externally owned registry of user break events. A session
// consumes its signals and translates them into engine calls.
type Store interface {
	// BreakEvents returns a snapshot of the store's break events.
	BreakEvents() []BreakEvent

	// Add inserts a break event and fires BreakEventAdded.
	Add(be BreakEvent) error

	// Remove deletes a break event and fires BreakEventRemoved.
	Remove(be BreakEvent) error

	// NotifyModified fires BreakEventModified for a break event whose
	// definition was edited in place.
	NotifyModified(be BreakEvent)

	// NotifyEnableChanged fires BreakEventEnableStatusChanged.
	NotifyEnableChanged(be BreakEvent)

	// NotifyStatusChanged fires BreakEventStatusChanged. Invoked by the
	// session when a break event's runtime status changes.
	NotifyStatusChanged(be BreakEvent)

	// ReadOnly raises CheckingReadOnly and reports whether break events may
	// currently be edited.
	ReadOnly() bool

	// Subscribe registers handlers for store signals.
	Subscribe(handlers StoreHandlers) *Subscription
}

// ListStore is the default in-memory Store.
type ListStore struct {
	mu     sync.RWMutex
	events []BreakEvent

	subMu  sync.RWMutex
	subs   []*Subscription
	nextID uint64
}

// NewListStore returns an empty store.
func NewListStore() *ListStore {
	return &ListStore{}
}

// BreakEvents returns a snapshot of the store's break events.
func (s *ListStore) BreakEvents() []BreakEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BreakEvent{}, s.events...)
}

// Breakpoints returns a snapshot of the store's breakpoints only.
func (s *ListStore) Breakpoints() []*Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bps []*Breakpoint
	for _, be := range s.events {
		if bp, ok := be.(*Breakpoint); ok {
			bps = append(bps, bp)
		}
	}
	return bps
}

// Add inserts a break event and fires BreakEventAdded.
func (s *ListStore) Add(be BreakEvent) error {
	if be == nil {
		return ErrNilBreakEvent
	}
	s.mu.Lock()
	for _, existing := range s.events {
		if existing == be {
			s.mu.Unlock()
			return ErrDuplicateBreakEvent
		}
	}
	s.events = append(s.events, be)
	s.mu.Unlock()

	s.each(func(h StoreHandlers) {
		if h.BreakEventAdded != nil {
			h.BreakEventAdded(be)
		}
	})
	return nil
}

// Remove deletes a break event and fires BreakEventRemoved.
func (s *ListStore) Remove(be BreakEvent) error {
	if be == nil {
		return ErrNilBreakEvent
	}
	s.mu.Lock()
	found := false
	for i, existing := range s.events {
		if existing == be {
			s.events = append(s.events[:i], s.events[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return ErrBreakEventNotFound
	}

	s.each(func(h StoreHandlers) {
		if h.BreakEventRemoved != nil {
			h.BreakEventRemoved(be)
		}
	})
	return nil
}

// NotifyModified fires BreakEventModified.
func (s *ListStore) NotifyModified(be BreakEvent) {
	s.each(func(h StoreHandlers) {
		if h.BreakEventModified != nil {
			h.BreakEventModified(be)
		}
	})
}

// NotifyEnableChanged fires BreakEventEnableStatusChanged.
func (s *ListStore) NotifyEnableChanged(be BreakEvent) {
	s.each(func(h StoreHandlers) {
		if h.BreakEventEnableStatusChanged != nil {
			h.BreakEventEnableStatusChanged(be)
		}
	})
}

// NotifyStatusChanged fires BreakEventStatusChanged.
func (s *ListStore) NotifyStatusChanged(be BreakEvent) {
	s.each(func(h StoreHandlers) {
		if h.BreakEventStatusChanged != nil {
			h.BreakEventStatusChanged(be)
		}
	})
}

// ReadOnly raises CheckingReadOnly and reports the combined answer.
func (s *ListStore) ReadOnly() bool {
	readOnly := false
	s.each(func(h StoreHandlers) {
		if h.CheckingReadOnly != nil {
			h.CheckingReadOnly(func(ro bool) {
				if ro {
					readOnly = true
				}
			})
		}
	})
	return readOnly
}

// Subscribe registers handlers for store signals.
func (s *ListStore) Subscribe(handlers StoreHandlers) *Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	sub := &Subscription{id: s.nextID, store: s, handlers: handlers}
	s.subs = append(s.subs, sub)
	return sub
}

func (s *ListStore) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// each invokes fn for every subscription, in registration order.
func (s *ListStore) each(fn func(StoreHandlers)) {
	s.subMu.RLock()
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		fn(sub.handlers)
	}
}
