// Package passthrough tunnels slots through an intermediate component.
//
// A component that only relays signals between its inner parts and the
// outside registers a Callback in one of its receivers and a Slot in one
// of its senders, and pairs them with Forward. Slots offered to the Callback
// are then connected directly to every receiver the Slot is connected to,
// so signals never pass through the component at emission time.
package passthrough

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/goclaw/sigslot/pkg/signal"
)

// Option configures a pass-through end.
type Option func(*options)

type options struct {
	name     string
	registry *signal.Registry
}

// WithName sets the name used in diagnostics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRegistry resolves the signal type in r instead of the default registry.
func WithRegistry(r *signal.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Callback is the inbound end of a tunnel. It is always transparent, so it
// is offered every compatible slot regardless of the other callbacks of its
// receiver.
type Callback struct {
	id         string
	name       string
	typ        *signal.Type
	precedence atomic.Uint64

	mu     sync.Mutex
	slots  []signal.SlotBase
	target *Slot
}

// NewCallback creates the inbound end for signals of type T.
func NewCallback[T any](opts ...Option) *Callback {
	o := applyOptions(opts)
	typ := signal.TypeOf[T](o.registry)
	name := o.name
	if name == "" {
		name = "passthrough(" + typ.Name() + ")"
	}
	return &Callback{id: uuid.NewString(), name: name, typ: typ}
}

// ID returns the unique callback identifier.
func (c *Callback) ID() string { return c.id }

// Name returns the callback name.
func (c *Callback) Name() string { return c.name }

// Type returns the tunneled signal type.
func (c *Callback) Type() *signal.Type { return c.typ }

// Invocation is always transparent.
func (c *Callback) Invocation() signal.Invocation { return signal.Transparent }

// Precedence returns the tie-break value assigned by the receiver.
func (c *Callback) Precedence() uint64 { return c.precedence.Load() }

// SetPrecedence sets the tie-break value.
func (c *Callback) SetPrecedence(p uint64) { c.precedence.Store(p) }

// Accepts reports whether slots of type t can be tunneled.
func (c *Callback) Accepts(t *signal.Type) bool {
	return t.IsA(c.typ)
}

// Connect remembers slot and connects it to every receiver of the paired
// Slot. It returns false if slot's type does not match or slot was
// remembered already.
func (c *Callback) Connect(slot signal.SlotBase) bool {
	if !c.Accepts(slot.Type()) {
		return false
	}

	c.mu.Lock()
	if slices.Contains(c.slots, slot) {
		c.mu.Unlock()
		return false
	}
	c.slots = append(slices.Clip(c.slots), slot)
	target := c.target
	c.mu.Unlock()

	for _, r := range target.Receivers() {
		slot.Connect(r)
	}
	return true
}

// Disconnect forgets slot and disconnects it from every receiver of the
// paired Slot.
func (c *Callback) Disconnect(slot signal.SlotBase) bool {
	c.mu.Lock()
	i := slices.Index(c.slots, slot)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.slots = slices.Delete(slices.Clone(c.slots), i, i+1)
	target := c.target
	c.mu.Unlock()

	for _, r := range target.Receivers() {
		slot.Disconnect(r)
	}
	return true
}

// Slots returns the slots currently tunneled through c.
func (c *Callback) Slots() []signal.SlotBase {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.slots)
}

// Target returns the paired Slot, or nil.
func (c *Callback) Target() *Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Slot is the outbound end of a tunnel. It never holds invokers itself.
type Slot struct {
	id   string
	name string
	typ  *signal.Type

	mu        sync.Mutex
	receivers []*signal.Receiver
	source    *Callback
}

// NewSlot creates the outbound end for signals of type T.
func NewSlot[T any](opts ...Option) *Slot {
	o := applyOptions(opts)
	typ := signal.TypeOf[T](o.registry)
	name := o.name
	if name == "" {
		name = "passthrough(" + typ.Name() + ")"
	}
	return &Slot{id: uuid.NewString(), name: name, typ: typ}
}

// ID returns the unique slot identifier.
func (s *Slot) ID() string { return s.id }

// Name returns the slot name.
func (s *Slot) Name() string { return s.name }

// Type returns the tunneled signal type.
func (s *Slot) Type() *signal.Type { return s.typ }

// NumTargets is always zero: deliveries go from the source slots straight
// to the receivers.
func (s *Slot) NumTargets() int { return 0 }

// Attach always fails; invokers belong to the tunneled slots.
func (s *Slot) Attach(*signal.Invoker) bool { return false }

// Detach always fails.
func (s *Slot) Detach(*signal.Relay) bool { return false }

// Connect remembers r and connects every slot tunneled through the paired
// Callback to it.
func (s *Slot) Connect(r *signal.Receiver) bool {
	if r == nil {
		return false
	}
	s.mu.Lock()
	if !slices.Contains(s.receivers, r) {
		s.receivers = append(slices.Clip(s.receivers), r)
	}
	source := s.source
	s.mu.Unlock()

	for _, slot := range source.Slots() {
		slot.Connect(r)
	}
	return true
}

// Disconnect forgets r and disconnects every tunneled slot from it.
func (s *Slot) Disconnect(r *signal.Receiver) bool {
	s.mu.Lock()
	i := slices.Index(s.receivers, r)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.receivers = slices.Delete(slices.Clone(s.receivers), i, i+1)
	source := s.source
	s.mu.Unlock()

	for _, slot := range source.Slots() {
		slot.Disconnect(r)
	}
	return true
}

// Receivers returns the receivers the slot is connected to.
func (s *Slot) Receivers() []*signal.Receiver {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.receivers)
}

// Source returns the paired Callback, or nil.
func (s *Slot) Source() *Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Forward pairs cb with slot. Slots already tunneled through cb are
// connected to the receivers already connected to slot.
func Forward(cb *Callback, slot *Slot) {
	cb.mu.Lock()
	cb.target = slot
	cb.mu.Unlock()

	slot.mu.Lock()
	slot.source = cb
	slot.mu.Unlock()

	receivers := slot.Receivers()
	for _, src := range cb.Slots() {
		for _, r := range receivers {
			src.Connect(r)
		}
	}
}
