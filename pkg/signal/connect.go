package signal

import "context"

// connectReceiver offers slot to the callbacks of r in receiver order.
// The first accepting exclusive callback fills the slot: later exclusive
// callbacks are unbound from slot if an earlier connection left them there,
// transparent ones are offered regardless of where they sit in the order.
// A callback that is already bound still fills the slot, so repeating a
// connection never binds a second exclusive callback.
func connectReceiver(slot SlotBase, r *Receiver) bool {
	if r == nil {
		return false
	}

	filled := false
	accepted := false
	for _, cb := range r.Callbacks() {
		if !cb.Accepts(slot.Type()) {
			continue
		}
		exclusive := cb.Invocation() == Exclusive
		if exclusive && filled {
			cb.Disconnect(slot)
			continue
		}
		cb.Connect(slot)
		accepted = true
		if exclusive {
			filled = true
		}
	}
	if !accepted {
		currentObserver().Observe(context.Background(), Event{
			Kind:     EventRejected,
			Slot:     slot.Name(),
			SlotType: slot.Type().Name(),
			Callback: r.Name(),
		})
	}
	return accepted
}

func disconnectReceiver(slot SlotBase, r *Receiver) bool {
	if r == nil {
		return false
	}

	removed := false
	for _, cb := range r.Callbacks() {
		if cb.Disconnect(slot) {
			removed = true
		}
	}
	return removed
}
