package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges a callback subscription to a channel, for
// consumers built around a select loop such as the SSE stream. Delivery
// is non-blocking: when the channel is full the event is dropped rather
// than stalling the dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
