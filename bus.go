package relink

import (
	"encoding/json"
	"sync"
)

// EventKind identifies a lifecycle event.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventMessage    EventKind = "message"
	EventVerify     EventKind = "verify"
)

// Event is delivered to registered handlers. Payload is set for message
// events; Err carries the close reason for disconnect events.
type Event struct {
	Kind    EventKind
	Payload json.RawMessage
	Err     error
}

// Handler receives lifecycle events.
type Handler func(Event)

// Bus dispatches lifecycle events to persistent and one-shot handlers.
type Bus struct {
	mu         sync.Mutex
	persistent map[EventKind][]Handler
	oneShot    map[EventKind][]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		persistent: make(map[EventKind][]Handler),
		oneShot:    make(map[EventKind][]Handler),
	}
}

// On registers a handler for every future event of the given kind.
func (b *Bus) On(kind EventKind, h Handler) {
	b.mu.Lock()
	b.persistent[kind] = append(b.persistent[kind], h)
	b.mu.Unlock()
}

// OnNext registers a handler for only the next event of the given kind.
func (b *Bus) OnNext(kind EventKind, h Handler) {
	b.mu.Lock()
	b.oneShot[kind] = append(b.oneShot[kind], h)
	b.mu.Unlock()
}

// Trigger invokes persistent handlers in registration order, then one-shot
// handlers in registration order, and clears the one-shot list for the kind.
// Handlers registered while Trigger runs are not invoked by this call.
func (b *Bus) Trigger(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.persistent[e.Kind])+len(b.oneShot[e.Kind]))
	handlers = append(handlers, b.persistent[e.Kind]...)
	handlers = append(handlers, b.oneShot[e.Kind]...)
	delete(b.oneShot, e.Kind)
	b.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
