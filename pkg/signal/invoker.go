package signal

import (
	"fmt"
	"runtime/debug"
)

// RelayFunc is the type-erased entry point of a callback. It is only ever
// called with signals that can be viewed as the callback's type.
type RelayFunc func(Signal) error

// Relay is the identity of a callback's entry point. Slots key their
// invokers by relay, so a callback is bound at most once per slot.
type Relay struct {
	fn RelayFunc
}

// NewRelay wraps fn into a relay with a fresh identity.
func NewRelay(fn RelayFunc) *Relay {
	if fn == nil {
		panic(ErrNilHandler)
	}
	return &Relay{fn: fn}
}

// Invoker is what a slot keeps once it accepted a callback: the relay, the
// view from the slot's type to the callback's type resolved at connection
// time, and the callback's tracking policy.
type Invoker struct {
	relay    *Relay
	view     ViewFunc
	tracking Tracking

	callback string
	ctype    *Type
}

// NewInvoker builds an invoker. A nil view delivers signals unchanged and a
// nil tracking policy means NoTracking.
func NewInvoker(relay *Relay, view ViewFunc, tracking Tracking) *Invoker {
	if view == nil {
		view = identity
	}
	if tracking == nil {
		tracking = NoTracking()
	}
	return &Invoker{relay: relay, view: view, tracking: tracking}
}

// Relay returns the identity the invoker was built for.
func (i *Invoker) Relay() *Relay {
	return i.relay
}

// Callback returns the name of the callback the invoker delivers to.
func (i *Invoker) Callback() string {
	return i.callback
}

// Policy returns the name of the tracking policy.
func (i *Invoker) Policy() string {
	return i.tracking.Policy()
}

// Same reports whether both invokers deliver to the same relay.
func (i *Invoker) Same(other *Invoker) bool {
	return other != nil && i.relay == other.relay
}

// Lock checks the liveness of the tracked holder for one delivery.
func (i *Invoker) Lock() Lock {
	return i.tracking.Lock()
}

// Invoke delivers sig. Callers must hold a lock obtained from Lock. Panics
// raised by the handler are returned as *PanicError.
func (i *Invoker) Invoke(sig Signal) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return i.relay.fn(i.view(sig))
}

func formatPanic(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
