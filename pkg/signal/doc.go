// Package signal implements typed in-process signal/slot dispatch.
//
// Producers expose Slots, consumers register Callbacks with a Receiver, and
// connecting a Sender to a Receiver binds every slot to the callbacks that
// accept its signal type. Signal types form an explicit hierarchy declared
// in a Registry with Derive; a slot of a derived type can feed callbacks of
// any of its ancestor types.
//
// Of all exclusive callbacks of a receiver that accept a slot, only the
// most specific one is bound. Transparent callbacks are bound whenever they
// accept the slot.
//
// Callbacks may track the lifetime of an object they belong to. A Weak
// tracked callback stops receiving once its holder is collected, and the
// slot drops it during the send that notices. Delivery is synchronous, in
// the sending goroutine and in connection order.
package signal
