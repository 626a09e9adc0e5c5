package signal

import (
	"context"
	"reflect"
	"runtime"
	"weak"
)

// Lock guards a single delivery through an invoker. A held lock guarantees
// that the tracked holder, if any, stays reachable until Release.
type Lock struct {
	held bool
	pin  any
}

// NewLock creates a lock. pin is kept reachable until Release; it is
// ignored for locks that are not held.
func NewLock(held bool, pin any) Lock {
	if !held {
		return Lock{}
	}
	return Lock{held: true, pin: pin}
}

// Held reports whether delivery may proceed.
func (l *Lock) Held() bool {
	return l.held
}

// Release drops the strong reference taken by the lock.
func (l *Lock) Release() {
	runtime.KeepAlive(l.pin)
	l.pin = nil
}

// Tracking decides whether an invoker may deliver, based on the liveness of
// an object owned outside the dispatch graph. Liveness is checked at every
// emission, never only at connection time.
type Tracking interface {
	// Lock is called once per delivery.
	Lock() Lock

	// Policy names the strategy for diagnostics.
	Policy() string
}

type noTracking struct{}

// NoTracking returns the policy whose lock always succeeds.
func NoTracking() Tracking {
	return noTracking{}
}

func (noTracking) Lock() Lock     { return Lock{held: true} }
func (noTracking) Policy() string { return "none" }

type weakTracking[H any] struct {
	holder weak.Pointer[H]
	pinned *H
}

// Weak tracks holder through a weak pointer. Deliveries stop once the
// holder has been garbage collected, and the invoker is purged by the send
// that discovers it. A nil holder never delivers.
//
// Pointers to zero-size types are never collected and cannot be weakly
// referenced, so such a holder is kept strongly and always delivers.
func Weak[H any](holder *H) Tracking {
	if holder != nil && reflect.TypeFor[H]().Size() == 0 {
		return weakTracking[H]{pinned: holder}
	}
	return weakTracking[H]{holder: weak.Make(holder)}
}

func (t weakTracking[H]) Lock() Lock {
	if t.pinned != nil {
		return Lock{held: true, pin: t.pinned}
	}
	h := t.holder.Value()
	if h == nil {
		return Lock{}
	}
	return Lock{held: true, pin: h}
}

func (weakTracking[H]) Policy() string { return "weak" }

type sharedTracking[H any] struct {
	holder *H
}

// Shared keeps holder alive for as long as any invoker created from the
// callback exists. Its lock fails only if no holder was given.
func Shared[H any](holder *H) Tracking {
	return sharedTracking[H]{holder: holder}
}

func (t sharedTracking[H]) Lock() Lock {
	return NewLock(t.holder != nil, t.holder)
}

func (sharedTracking[H]) Policy() string { return "shared" }

type boundTracking struct {
	ctx context.Context
}

// Bound ties deliveries to ctx: once ctx is done the invoker is stale.
func Bound(ctx context.Context) Tracking {
	return boundTracking{ctx: ctx}
}

func (t boundTracking) Lock() Lock {
	return NewLock(t.ctx.Err() == nil, nil)
}

func (boundTracking) Policy() string { return "bound" }
