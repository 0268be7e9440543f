package fisher

import (
	"sync"
	"time"
)

// EventType identifies a lifecycle event published by the registry.
type EventType string

const (
	EventPaymentReceived EventType = "payment_received"
	EventPaymentExecuted EventType = "payment_executed"
	EventPaymentFailed   EventType = "payment_failed"
)

// Event carries a snapshot of the payment at the moment of the transition.
type Event struct {
	Type      EventType `json:"type"`
	Payment   Payment   `json:"payment"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus delivers registry events to subscribers synchronously, in registration
// order. Each registry instance owns its bus; there is no package-level
// subscriber state.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a callback for every published event and returns a
// handle for Unsubscribe.
func (b *Bus) Subscribe(fn func(Event)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes a previously registered callback. Unknown handles are
// ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every subscriber with the event, in registration order.
// Callbacks run on the caller's goroutine; they must not block.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
}
