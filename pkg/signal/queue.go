package signal

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Queue decouples handling from sending: its callback pushes signals into a
// buffered channel that another goroutine drains. When the buffer is full
// the oldest queued signal is dropped.
//
// The callback is transparent unless WithInvocation says otherwise, and it
// is bound to the queue's lifetime: after Close the slots it is connected to
// purge it on their next send.
type Queue[T any] struct {
	ch       chan T
	callback *Callback
	cancel   context.CancelFunc
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue with room for size signals. size <= 0 selects 16.
func NewQueue[T any](size int, opts ...CallbackOption) *Queue[T] {
	if size <= 0 {
		size = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		ch:     make(chan T, size),
		cancel: cancel,
	}

	base := []CallbackOption{AsTransparent(), WithName("queue(" + reflect.TypeFor[T]().String() + ")")}
	opts = append(base, opts...)
	opts = append(opts, WithTracking(Bound(ctx)))
	q.callback = NewCallback(q.push, opts...)
	return q
}

// C returns the channel signals are delivered on. It is closed by Close.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Callback returns the callback to register with a receiver.
func (q *Queue[T]) Callback() *Callback {
	return q.callback
}

// Dropped returns the number of signals discarded because the buffer was full.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops delivery and closes the channel. Signals still buffered can
// be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cancel()
	close(q.ch)
}

func (q *Queue[T]) push(sig T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil
	}

	select {
	case q.ch <- sig:
		return nil
	default:
	}
	select {
	case <-q.ch:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.ch <- sig:
	default:
		q.dropped.Add(1)
	}
	return nil
}
