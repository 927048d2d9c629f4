package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers an event to all subscribers of its concrete type.
// Usage: bus.Publish(FramePublishedEvent{...})
func (b *Bus) Publish(ev Event) {
	// The generic Publish needs the concrete type, so dispatch through
	// a type switch.
	switch e := ev.(type) {
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceOpenedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceClosedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceHotplugEvent:
		event.Publish(b.dispatcher, e)
	case FramePublishedEvent:
		event.Publish(b.dispatcher, e)
	case ControlWriteEvent:
		event.Publish(b.dispatcher, e)
	case StatusIngestedEvent:
		event.Publish(b.dispatcher, e)
	case ConfigUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case DriverErrorEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler function. The handler's parameter type
// selects which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FramePublishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceHotplugEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FramePublishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ControlWriteEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatusIngestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DriverErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler types subscribe to nothing.
		return func() {}
	}
}
