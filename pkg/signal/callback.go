package signal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Invocation selects how a callback competes with other compatible
// callbacks of the same receiver.
type Invocation int

const (
	// Exclusive callbacks: of all compatible ones, only the most specific
	// is connected to a slot.
	Exclusive Invocation = iota

	// Transparent callbacks are always connected, regardless of other,
	// possibly more specific, callbacks.
	Transparent
)

// String returns the invocation mode name.
func (i Invocation) String() string {
	switch i {
	case Exclusive:
		return "exclusive"
	case Transparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// CallbackBase is the subscription side of the connection protocol.
// Receivers order and offer slots to CallbackBase values; *Callback is the
// regular implementation.
type CallbackBase interface {
	ID() string
	Name() string
	Type() *Type
	Invocation() Invocation

	// Precedence is the final tie-break, assigned by the receiver.
	Precedence() uint64
	SetPrecedence(p uint64)

	// Accepts reports whether signals of type t can be delivered to the
	// callback, i.e. t is at least as specific as the callback's type.
	Accepts(t *Type) bool

	// Connect binds the callback to slot. It returns false on a type
	// mismatch or when the callback was bound already.
	Connect(slot SlotBase) bool

	// Disconnect unbinds the callback from slot and reports whether it was bound.
	Disconnect(slot SlotBase) bool
}

type callbackConfig struct {
	name       string
	invocation Invocation
	tracking   Tracking
	registry   *Registry
}

// CallbackOption configures a callback.
type CallbackOption func(*callbackConfig)

// AsTransparent makes the callback transparent.
func AsTransparent() CallbackOption {
	return WithInvocation(Transparent)
}

// WithInvocation sets the invocation mode.
func WithInvocation(mode Invocation) CallbackOption {
	return func(c *callbackConfig) {
		c.invocation = mode
	}
}

// WithTracking attaches a tracking policy at construction.
func WithTracking(t Tracking) CallbackOption {
	return func(c *callbackConfig) {
		c.tracking = t
	}
}

// WithName sets the name used in logs and errors.
func WithName(name string) CallbackOption {
	return func(c *callbackConfig) {
		c.name = name
	}
}

// WithRegistry resolves the callback's type in r instead of the default registry.
func WithRegistry(r *Registry) CallbackOption {
	return func(c *callbackConfig) {
		c.registry = r
	}
}

// Callback wraps a handler for one signal type.
type Callback struct {
	id         string
	name       string
	typ        *Type
	relay      *Relay
	invocation Invocation
	precedence atomic.Uint64

	mu       sync.RWMutex
	tracking Tracking
}

// NewCallback creates a callback delivering signals viewed as T to fn.
func NewCallback[T any](fn func(T) error, opts ...CallbackOption) *Callback {
	if fn == nil {
		panic(ErrNilHandler)
	}
	cfg := applyCallbackOptions(opts)
	typ := TypeOf[T](cfg.registry)

	relay := func(s Signal) error {
		var v T
		if s != nil {
			var ok bool
			if v, ok = s.(T); !ok {
				return fmt.Errorf("%w: got %T, want %s", ErrSignalType, s, typ)
			}
		}
		return fn(v)
	}
	return newCallback(typ, NewRelay(relay), cfg)
}

// NewCallbackFunc is NewCallback for handlers that cannot fail.
func NewCallbackFunc[T any](fn func(T), opts ...CallbackOption) *Callback {
	if fn == nil {
		panic(ErrNilHandler)
	}
	return NewCallback(func(v T) error {
		fn(v)
		return nil
	}, opts...)
}

// NewRelayCallback creates a callback of type t around an already erased
// relay. The relay must accept every signal that can be viewed as t.
func NewRelayCallback(t *Type, relay RelayFunc, opts ...CallbackOption) *Callback {
	return newCallback(t, NewRelay(relay), applyCallbackOptions(opts))
}

func applyCallbackOptions(opts []CallbackOption) *callbackConfig {
	cfg := &callbackConfig{invocation: Exclusive}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newCallback(typ *Type, relay *Relay, cfg *callbackConfig) *Callback {
	tracking := cfg.tracking
	if tracking == nil {
		tracking = NoTracking()
	}
	name := cfg.name
	if name == "" {
		name = "callback(" + typ.Name() + ")"
	}
	return &Callback{
		id:         uuid.NewString(),
		name:       name,
		typ:        typ,
		relay:      relay,
		invocation: cfg.invocation,
		tracking:   tracking,
	}
}

// ID returns the unique callback identifier.
func (c *Callback) ID() string { return c.id }

// Name returns the callback name.
func (c *Callback) Name() string { return c.name }

// Type returns the signal type the callback was declared for.
func (c *Callback) Type() *Type { return c.typ }

// Invocation returns the invocation mode.
func (c *Callback) Invocation() Invocation { return c.invocation }

// IsTransparent reports whether the callback is transparent.
func (c *Callback) IsTransparent() bool { return c.invocation == Transparent }

// Precedence returns the tie-break value assigned by the receiver.
func (c *Callback) Precedence() uint64 { return c.precedence.Load() }

// SetPrecedence sets the tie-break value.
func (c *Callback) SetPrecedence(p uint64) { c.precedence.Store(p) }

// Relay returns the callback's relay.
func (c *Callback) Relay() *Relay { return c.relay }

// Track replaces the tracking policy. It affects connections made afterwards.
func (c *Callback) Track(t Tracking) {
	if t == nil {
		t = NoTracking()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = t
}

// Tracking returns the current tracking policy.
func (c *Callback) Tracking() Tracking {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracking
}

// Accepts reports whether signals of type t can be delivered to c.
func (c *Callback) Accepts(t *Type) bool {
	return t.IsA(c.typ)
}

// Connect binds c to slot.
func (c *Callback) Connect(slot SlotBase) bool {
	st := slot.Type()
	view, ok := c.typ.Registry().Viewer(st, c.typ)
	if !ok {
		currentObserver().Observe(context.Background(), Event{
			Kind:         EventRejected,
			Slot:         slot.Name(),
			SlotType:     st.Name(),
			Callback:     c.name,
			CallbackType: c.typ.Name(),
		})
		return false
	}

	inv := NewInvoker(c.relay, view, c.Tracking())
	inv.callback = c.name
	inv.ctype = c.typ
	return slot.Attach(inv)
}

// Disconnect unbinds c from slot.
func (c *Callback) Disconnect(slot SlotBase) bool {
	if !c.Accepts(slot.Type()) {
		return false
	}
	return slot.Detach(c.relay)
}

// String implements fmt.Stringer.
func (c *Callback) String() string {
	return c.name
}
