package signal

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SlotBase is the emission side of the connection protocol.
type SlotBase interface {
	ID() string
	Name() string
	Type() *Type

	// Connect offers the slot to every callback of r following the
	// exclusive/transparent selection rules. It reports whether at least
	// one callback accepted the slot.
	Connect(r *Receiver) bool

	// Disconnect removes every callback of r from the slot.
	Disconnect(r *Receiver) bool

	// Attach appends inv unless an invoker for the same relay is present.
	Attach(inv *Invoker) bool

	// Detach removes the invoker bound to relay.
	Detach(relay *Relay) bool

	// NumTargets returns the number of live invokers.
	NumTargets() int
}

type slotConfig struct {
	name     string
	registry *Registry
}

// SlotOption configures a slot.
type SlotOption func(*slotConfig)

// WithSlotName sets the name used in logs and errors.
func WithSlotName(name string) SlotOption {
	return func(c *slotConfig) {
		c.name = name
	}
}

// WithSlotRegistry resolves the slot's type in r instead of the default registry.
func WithSlotRegistry(r *Registry) SlotOption {
	return func(c *slotConfig) {
		c.registry = r
	}
}

// Slot emits signals of type T to the callbacks connected to it.
//
// The invoker list is copy-on-write: Attach, Detach and the purge after a
// broadcast replace the slice under mu, and Send iterates the slice it
// loaded at its start without holding mu. Handlers may therefore connect,
// disconnect or send through the same slot.
type Slot[T any] struct {
	id   string
	name string
	typ  *Type

	mu       sync.Mutex
	invokers []*Invoker
}

// NewSlot creates a slot for signals of type T.
func NewSlot[T any](opts ...SlotOption) *Slot[T] {
	cfg := &slotConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	typ := TypeOf[T](cfg.registry)
	name := cfg.name
	if name == "" {
		name = "slot(" + typ.Name() + ")"
	}
	return &Slot[T]{
		id:   uuid.NewString(),
		name: name,
		typ:  typ,
	}
}

// ID returns the unique slot identifier.
func (s *Slot[T]) ID() string { return s.id }

// Name returns the slot name.
func (s *Slot[T]) Name() string { return s.name }

// Type returns the signal type of the slot.
func (s *Slot[T]) Type() *Type { return s.typ }

// String implements fmt.Stringer.
func (s *Slot[T]) String() string { return s.name }

// NumTargets returns the number of invokers currently held by the slot.
func (s *Slot[T]) NumTargets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invokers)
}

// Connect offers the slot to the callbacks of r.
func (s *Slot[T]) Connect(r *Receiver) bool {
	return connectReceiver(s, r)
}

// Disconnect removes the callbacks of r from the slot.
func (s *Slot[T]) Disconnect(r *Receiver) bool {
	return disconnectReceiver(s, r)
}

// Attach appends inv to the invoker list.
func (s *Slot[T]) Attach(inv *Invoker) bool {
	if inv == nil {
		return false
	}
	ev := Event{
		Kind:         EventConnected,
		Slot:         s.name,
		SlotType:     s.typ.Name(),
		Callback:     inv.callback,
		CallbackType: inv.ctype.Name(),
	}

	s.mu.Lock()
	attached := true
	for _, existing := range s.invokers {
		if existing.Same(inv) {
			attached = false
			break
		}
	}
	if attached {
		next := make([]*Invoker, len(s.invokers), len(s.invokers)+1)
		copy(next, s.invokers)
		s.invokers = append(next, inv)
	}
	s.mu.Unlock()

	if !attached {
		ev.Kind = EventDuplicate
	}
	currentObserver().Observe(context.Background(), ev)
	return attached
}

// Detach removes the invoker bound to relay.
func (s *Slot[T]) Detach(relay *Relay) bool {
	s.mu.Lock()
	var removed *Invoker
	next := make([]*Invoker, 0, len(s.invokers))
	for _, inv := range s.invokers {
		if removed == nil && inv.relay == relay {
			removed = inv
			continue
		}
		next = append(next, inv)
	}
	if removed != nil {
		s.invokers = next
	}
	s.mu.Unlock()

	if removed == nil {
		return false
	}
	currentObserver().Observe(context.Background(), Event{
		Kind:         EventDisconnected,
		Slot:         s.name,
		SlotType:     s.typ.Name(),
		Callback:     removed.callback,
		CallbackType: removed.ctype.Name(),
	})
	return true
}

// Send broadcasts sig to every connected callback.
func (s *Slot[T]) Send(sig T) error {
	return s.SendContext(context.Background(), sig)
}

// SendDefault broadcasts a default-constructed T. For pointer types the
// signal is a pointer to a new zero value rather than nil.
func (s *Slot[T]) SendDefault() error {
	return s.Send(newDefault[T]())
}

// SendContext broadcasts sig in connection order, in the calling goroutine.
//
// Invokers whose lock fails are not called; they are removed from the slot
// in one batch after the pass. A failing or panicking handler does not stop
// the broadcast: every failure is wrapped in a *HandlerError and the joined
// errors are returned once all invokers were processed. ctx is handed to the
// observer only; handlers cannot be interrupted.
func (s *Slot[T]) SendContext(ctx context.Context, sig T) error {
	s.mu.Lock()
	targets := s.invokers
	s.mu.Unlock()

	obs := currentObserver()
	start := time.Now()

	var (
		stale     []*Invoker
		errs      []error
		delivered int
	)
	for _, inv := range targets {
		lock := inv.Lock()
		if !lock.Held() {
			stale = append(stale, inv)
			continue
		}
		err := inv.Invoke(sig)
		lock.Release()

		if err != nil {
			errs = append(errs, &HandlerError{
				Slot:         s.name,
				SlotType:     s.typ.Name(),
				Callback:     inv.callback,
				CallbackType: inv.ctype.Name(),
				Err:          err,
			})
			obs.Observe(ctx, Event{
				Kind:         EventHandlerFailed,
				Slot:         s.name,
				SlotType:     s.typ.Name(),
				Callback:     inv.callback,
				CallbackType: inv.ctype.Name(),
				Err:          err,
			})
			continue
		}
		delivered++
	}

	if len(stale) > 0 {
		purged := s.purge(stale)
		obs.Observe(ctx, Event{
			Kind:     EventStalePurged,
			Slot:     s.name,
			SlotType: s.typ.Name(),
			Stale:    purged,
		})
	}

	obs.Observe(ctx, Event{
		Kind:      EventSent,
		Slot:      s.name,
		SlotType:  s.typ.Name(),
		Delivered: delivered,
		Failed:    len(errs),
		Stale:     len(stale),
		Duration:  time.Since(start),
	})
	return errors.Join(errs...)
}

// purge removes the given invokers by identity. An invoker re-attached for
// the same relay in the meantime is a different value and survives.
func (s *Slot[T]) purge(stale []*Invoker) int {
	dead := make(map[*Invoker]struct{}, len(stale))
	for _, inv := range stale {
		dead[inv] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]*Invoker, 0, len(s.invokers))
	for _, inv := range s.invokers {
		if _, ok := dead[inv]; ok {
			continue
		}
		next = append(next, inv)
	}
	purged := len(s.invokers) - len(next)
	s.invokers = next
	return purged
}

func newDefault[T any]() T {
	var zero T
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Pointer {
		return reflect.New(rt.Elem()).Interface().(T)
	}
	return zero
}
