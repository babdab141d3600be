// Package events provides the in-process event bus connecting the
// device manager, indicator registry, and API surfaces.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(DeviceAttachedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so fan out
	// through a type switch.
	switch e := ev.(type) {
	case DeviceAttachedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDetachedEvent:
		event.Publish(b.dispatcher, e)
	case IndicationChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type determines which events it receives. Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e DeviceAttachedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceAttachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDetachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(IndicationChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
