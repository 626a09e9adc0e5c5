package signal

import (
	"sync"

	"github.com/google/uuid"
)

// Receiver groups callbacks and keeps them in connection order.
type Receiver struct {
	id   string
	name string

	mu        sync.RWMutex
	callbacks []CallbackBase
	next      uint64
}

// NewReceiver creates an empty receiver. name is used in diagnostics only.
func NewReceiver(name string) *Receiver {
	if name == "" {
		name = "receiver"
	}
	return &Receiver{
		id:   uuid.NewString(),
		name: name,
	}
}

// ID returns the unique receiver identifier.
func (r *Receiver) ID() string { return r.id }

// Name returns the receiver name.
func (r *Receiver) Name() string { return r.name }

// Register adds cb and assigns it the next precedence value, so callbacks
// registered later win ties. It returns false if cb is registered already.
func (r *Receiver) Register(cb CallbackBase) bool {
	if cb == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.callbacks {
		if existing == cb {
			return false
		}
	}
	r.next++
	cb.SetPrecedence(r.next)

	next := make([]CallbackBase, len(r.callbacks), len(r.callbacks)+1)
	copy(next, r.callbacks)
	r.callbacks = sortCallbacks(append(next, cb))
	return true
}

// Unregister removes cb. Slots it is connected to keep their invokers until
// they are disconnected from the receiver or go stale.
func (r *Receiver) Unregister(cb CallbackBase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.callbacks {
		if existing != cb {
			continue
		}
		next := make([]CallbackBase, 0, len(r.callbacks)-1)
		next = append(next, r.callbacks[:i]...)
		r.callbacks = append(next, r.callbacks[i+1:]...)
		return true
	}
	return false
}

// Callbacks returns the callbacks in connection order.
func (r *Receiver) Callbacks() []CallbackBase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CallbackBase(nil), r.callbacks...)
}

// Len returns the number of registered callbacks.
func (r *Receiver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Handle creates a callback for fn, registers it with r and returns it.
func Handle[T any](r *Receiver, fn func(T) error, opts ...CallbackOption) *Callback {
	cb := NewCallback(fn, opts...)
	r.Register(cb)
	return cb
}
