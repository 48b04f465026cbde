// Package events provides a lightweight pub/sub event bus for interview
// lifecycle notifications.
package events

import (
	"sync"
)

// Listener is a function that handles events.
type Listener func(*Event)

const defaultBufferSize = 256

// EventBus delivers events to listeners on a single dispatch goroutine, so
// listeners observe events in publish order.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener

	// sendMu guards closed and sends on queue. It is separate from mu so
	// the dispatcher can drain while a publisher is blocked on a full queue.
	sendMu    sync.RWMutex
	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewEventBus creates a new event bus and starts its dispatcher.
func NewEventBus() *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]Listener),
		queue:     make(chan *Event, defaultBufferSize),
		done:      make(chan struct{}),
	}
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners[eventType] = append(eb.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (eb *EventBus) SubscribeAll(listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.globalListeners = append(eb.globalListeners, listener)
}

// Publish queues an event for delivery. It returns false when the bus is
// closed. Publish blocks when the queue is full.
func (eb *EventBus) Publish(event *Event) bool {
	eb.sendMu.RLock()
	defer eb.sendMu.RUnlock()
	if eb.closed {
		return false
	}
	eb.queue <- event
	return true
}

// Close stops accepting events and waits until queued events are delivered.
func (eb *EventBus) Close() {
	eb.closeOnce.Do(func() {
		eb.sendMu.Lock()
		eb.closed = true
		close(eb.queue)
		eb.sendMu.Unlock()
	})
	<-eb.done
}

func (eb *EventBus) dispatch() {
	defer close(eb.done)
	for event := range eb.queue {
		eb.mu.RLock()
		specific := append([]Listener(nil), eb.listeners[event.Type]...)
		global := append([]Listener(nil), eb.globalListeners...)
		eb.mu.RUnlock()

		for _, listener := range specific {
			safeInvoke(listener, event)
		}
		for _, listener := range global {
			safeInvoke(listener, event)
		}
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
