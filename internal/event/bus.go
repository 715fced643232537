package event

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/debugstorm/internal/engine"
)

// Handler receives a target event.
type Handler func(ev engine.TargetEvent)

// PanicHandler receives the value recovered from a panicking handler along
// with the stack at the point of the panic.
type PanicHandler func(ev engine.TargetEvent, recovered any, stack []byte)

// Subscription identifies an active subscription.
type Subscription struct {
	id        string
	kind      engine.EventKind
	all       bool
	handler   Handler
	cancelled atomic.Bool
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Cancel deactivates the subscription without removing it from the bus.
// Unsubscribe both cancels and removes.
func (s *Subscription) Cancel() { s.cancelled.Store(true) }

// Stats is a snapshot of bus counters.
type Stats struct {
	EventsPublished  uint64
	HandlersExecuted uint64
	HandlerPanics    uint64
}

// Bus delivers target events to typed subscribers. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu     sync.RWMutex
	byKind map[engine.EventKind][]*Subscription
	all    []*Subscription

	panicHandler PanicHandler

	eventsPublished  atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerPanics    atomic.Uint64
}

// NewBus creates a bus. panicHandler may be nil, in which case handler
// panics are swallowed after being counted.
func NewBus(panicHandler PanicHandler) *Bus {
	return &Bus{
		byKind:       make(map[engine.EventKind][]*Subscription),
		panicHandler: panicHandler,
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind engine.EventKind, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	sub := &Subscription{id: uuid.NewString(), kind: kind, handler: handler}

	b.mu.Lock()
	b.byKind[kind] = append(b.byKind[kind], sub)
	b.mu.Unlock()
	return sub, nil
}

// SubscribeAll registers a catch-all handler invoked for every event, after
// the kind-specific handlers.
func (b *Bus) SubscribeAll(handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	sub := &Subscription{id: uuid.NewString(), all: true, handler: handler}

	b.mu.Lock()
	b.all = append(b.all, sub)
	b.mu.Unlock()
	return sub, nil
}

// Unsubscribe cancels and removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	sub.Cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.all {
		if removed := removeSub(&b.all, sub.id); !removed {
			return ErrSubscriptionNotFound
		}
		return nil
	}
	list := b.byKind[sub.kind]
	if removed := removeSub(&list, sub.id); !removed {
		return ErrSubscriptionNotFound
	}
	b.byKind[sub.kind] = list
	return nil
}

func removeSub(list *[]*Subscription, id string) bool {
	for i, s := range *list {
		if s.id == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers an event synchronously: kind subscribers first, then
// catch-all subscribers, each in registration order.
func (b *Bus) Publish(ev engine.TargetEvent) {
	b.mu.RLock()
	kindSubs := append([]*Subscription{}, b.byKind[ev.Kind]...)
	allSubs := append([]*Subscription{}, b.all...)
	b.mu.RUnlock()

	b.eventsPublished.Add(1)

	for _, sub := range kindSubs {
		b.deliver(sub, ev)
	}
	for _, sub := range allSubs {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *Subscription, ev engine.TargetEvent) {
	if sub.cancelled.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			if b.panicHandler != nil {
				stack := make([]byte, 4096)
				n := runtime.Stack(stack, false)
				b.panicHandler(ev, r, stack[:n])
			}
		}
	}()
	b.handlersExecuted.Add(1)
	sub.handler(ev)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		EventsPublished:  b.eventsPublished.Load(),
		HandlersExecuted: b.handlersExecuted.Load(),
		HandlerPanics:    b.handlerPanics.Load(),
	}
}
