package events

import (
	"sync"
	"time"
)

// Handler processes a single event
type Handler func(Event)

// Sink receives events from the repair loop and its collaborators
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Emit(Event) {}

// Bus provides event distribution across components.
// Handlers are invoked synchronously in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all events
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit stamps the event time and dispatches it to all handlers
func (b *Bus) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
