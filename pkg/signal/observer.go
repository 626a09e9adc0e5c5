package signal

import (
	"context"
	"sync"
	"time"
)

// EventKind classifies trace events reported to an Observer.
type EventKind string

const (
	// EventConnected is reported when a slot attaches a new invoker.
	EventConnected EventKind = "connected"
	// EventRejected is reported when a callback does not accept a slot's type.
	EventRejected EventKind = "rejected"
	// EventDuplicate is reported when a callback is already bound to the slot.
	EventDuplicate EventKind = "duplicate"
	// EventDisconnected is reported when a slot detaches an invoker.
	EventDisconnected EventKind = "disconnected"
	// EventSent is reported once per completed broadcast.
	EventSent EventKind = "sent"
	// EventStalePurged is reported when a broadcast removed dead invokers.
	EventStalePurged EventKind = "stale_purged"
	// EventHandlerFailed is reported for every failing or panicking handler.
	EventHandlerFailed EventKind = "handler_failed"
)

// Event is a structured trace record of the dispatch core.
type Event struct {
	Kind         EventKind
	Slot         string
	SlotType     string
	Callback     string
	CallbackType string

	// Broadcast results, set for EventSent and EventStalePurged.
	Delivered int
	Failed    int
	Stale     int
	Duration  time.Duration

	// Err is set for EventHandlerFailed.
	Err error
}

// Observer receives trace events. Implementations must be safe for
// concurrent use and must not block: they run inside Send.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

var (
	observerMu sync.RWMutex
	observer   Observer = nopObserver{}
)

// SetObserver sets the package-level observer. nil restores the no-op observer.
func SetObserver(o Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if o == nil {
		observer = nopObserver{}
		return
	}
	observer = o
}

func currentObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return observer
}
