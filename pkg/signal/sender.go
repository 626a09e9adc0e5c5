package signal

import (
	"sync"

	"github.com/google/uuid"
)

// Sender groups slots. Slots are kept most specific first, with
// registration order breaking ties between unrelated types.
type Sender struct {
	id   string
	name string

	mu    sync.RWMutex
	slots []SlotBase
}

// NewSender creates an empty sender. name is used in diagnostics only.
func NewSender(name string) *Sender {
	if name == "" {
		name = "sender"
	}
	return &Sender{
		id:   uuid.NewString(),
		name: name,
	}
}

// ID returns the unique sender identifier.
func (s *Sender) ID() string { return s.id }

// Name returns the sender name.
func (s *Sender) Name() string { return s.name }

// Register adds slot. It returns false if slot is registered already.
func (s *Sender) Register(slot SlotBase) bool {
	if slot == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.slots {
		if existing == slot {
			return false
		}
	}

	s.slots = sortSlots(append(append([]SlotBase(nil), s.slots...), slot))
	return true
}

// Unregister removes slot. Existing connections of the slot are kept.
func (s *Sender) Unregister(slot SlotBase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.slots {
		if existing != slot {
			continue
		}
		next := make([]SlotBase, 0, len(s.slots)-1)
		next = append(next, s.slots[:i]...)
		s.slots = append(next, s.slots[i+1:]...)
		return true
	}
	return false
}

// Slots returns the registered slots in connection order.
func (s *Sender) Slots() []SlotBase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SlotBase(nil), s.slots...)
}

// Len returns the number of registered slots.
func (s *Sender) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Connect connects every slot of s to r and reports whether any slot found
// an accepting callback.
func (s *Sender) Connect(r *Receiver) bool {
	connected := false
	for _, slot := range s.Slots() {
		if slot.Connect(r) {
			connected = true
		}
	}
	return connected
}

// Disconnect removes every callback of r from every slot of s.
func (s *Sender) Disconnect(r *Receiver) bool {
	removed := false
	for _, slot := range s.Slots() {
		if slot.Disconnect(r) {
			removed = true
		}
	}
	return removed
}

// Connect connects the slots of s to the callbacks of r.
func Connect(s *Sender, r *Receiver) bool {
	return s.Connect(r)
}

// Disconnect undoes Connect.
func Disconnect(s *Sender, r *Receiver) bool {
	return s.Disconnect(r)
}
