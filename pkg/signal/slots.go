package signal

import "sync"

// Slots is an indexable collection of slots of one signal type, for senders
// that expose a variable number of emission points, one per channel or
// device. Each slot is connected on its own.
type Slots[T any] struct {
	opts []SlotOption

	mu    sync.RWMutex
	slots []*Slot[T]
}

// NewSlots creates an empty collection. opts are applied to every slot Add
// creates.
func NewSlots[T any](opts ...SlotOption) *Slots[T] {
	return &Slots[T]{opts: opts}
}

// Add creates a new slot at the end of the collection and returns it.
func (c *Slots[T]) Add() *Slot[T] {
	slot := NewSlot[T](c.opts...)
	c.mu.Lock()
	c.slots = append(c.slots, slot)
	c.mu.Unlock()
	return slot
}

// Remove deletes the slot at index i and returns it. Indexes of the
// following slots shift down by one.
func (c *Slots[T]) Remove(i int) (*Slot[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.slots) {
		return nil, false
	}
	slot := c.slots[i]
	next := make([]*Slot[T], 0, len(c.slots)-1)
	next = append(next, c.slots[:i]...)
	c.slots = append(next, c.slots[i+1:]...)
	return slot, true
}

// Clear removes all slots.
func (c *Slots[T]) Clear() {
	c.mu.Lock()
	c.slots = nil
	c.mu.Unlock()
}

// Len returns the number of slots.
func (c *Slots[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// At returns the slot at index i.
func (c *Slots[T]) At(i int) (*Slot[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.slots) {
		return nil, false
	}
	return c.slots[i], true
}

// All returns the slots in index order.
func (c *Slots[T]) All() []*Slot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Slot[T](nil), c.slots...)
}
