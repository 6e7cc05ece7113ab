package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch. Events are dropped
// when ch is full so a slow reader never stalls publishers. A nil bus
// yields a no-op unsubscribe.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeCapture forwards every session, button, snapshot and device
// event into ch. Log entries are not included.
func SubscribeCapture(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[SessionStartedEvent](bus, ch),
		SubscribeToChannel[SessionStoppedEvent](bus, ch),
		SubscribeToChannel[ButtonPressedEvent](bus, ch),
		SubscribeToChannel[SnapshotSavedEvent](bus, ch),
		SubscribeToChannel[SnapshotFailedEvent](bus, ch),
		SubscribeToChannel[DeviceLostEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
