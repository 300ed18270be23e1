package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(TorchPowerChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case TorchPowerChangedEvent:
		event.Publish(b.dispatcher, e)
	case BrightnessChangedEvent:
		event.Publish(b.dispatcher, e)
	case SOSModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case StrobeModeChangedEvent:
		event.Publish(b.dispatcher, e)
	case SignalJobEvent:
		event.Publish(b.dispatcher, e)
	case SignalFlashEvent:
		event.Publish(b.dispatcher, e)
	case HardwareFaultEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e SOSModeChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(TorchPowerChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BrightnessChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SOSModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StrobeModeChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SignalJobEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SignalFlashEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HardwareFaultEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
