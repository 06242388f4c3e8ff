package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for control-plane event
// broadcasting. Frame delivery to consumers goes through the frame
// dispatcher, not this bus; FrameEvent here only feeds SSE observers.
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
// Usage: bus.Publish(CaptureStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches by concrete type, so fan the interface
	// back out to the typed Publish.
	switch e := ev.(type) {
	case BusConnectedEvent:
		event.Publish(b.dispatcher, e)
	case BusDisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStartedEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStoppedEvent:
		event.Publish(b.dispatcher, e)
	case PlayerStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeliveryErrorEvent:
		event.Publish(b.dispatcher, e)
	case TraceSavedEvent:
		event.Publish(b.dispatcher, e)
	case TraceLoadedEvent:
		event.Publish(b.dispatcher, e)
	case FrameEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function; the handler's
// parameter type determines which events it receives. Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e CaptureStartedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(BusConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BusDisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PlayerStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeliveryErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TraceSavedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TraceLoadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
