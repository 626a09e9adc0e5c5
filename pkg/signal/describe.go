package signal

// SlotInfo is a diagnostic snapshot of a slot.
type SlotInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Targets int    `json:"targets"`
}

// CallbackInfo is a diagnostic snapshot of a callback.
type CallbackInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Invocation string `json:"invocation"`
	Precedence uint64 `json:"precedence"`
	Tracking   string `json:"tracking,omitempty"`
}

// SenderInfo lists the slots of a sender in connection order.
type SenderInfo struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Slots []SlotInfo `json:"slots"`
}

// ReceiverInfo lists the callbacks of a receiver in connection order.
type ReceiverInfo struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Callbacks []CallbackInfo `json:"callbacks"`
}

// Topology is what the diagnostics endpoint serves.
type Topology struct {
	Senders   []SenderInfo   `json:"senders"`
	Receivers []ReceiverInfo `json:"receivers"`
}

// DescribeSlot snapshots slot.
func DescribeSlot(slot SlotBase) SlotInfo {
	return SlotInfo{
		ID:      slot.ID(),
		Name:    slot.Name(),
		Type:    slot.Type().Name(),
		Targets: slot.NumTargets(),
	}
}

// DescribeCallback snapshots cb.
func DescribeCallback(cb CallbackBase) CallbackInfo {
	info := CallbackInfo{
		ID:         cb.ID(),
		Name:       cb.Name(),
		Type:       cb.Type().Name(),
		Invocation: cb.Invocation().String(),
		Precedence: cb.Precedence(),
	}
	if tracked, ok := cb.(interface{ Tracking() Tracking }); ok {
		info.Tracking = tracked.Tracking().Policy()
	}
	return info
}

// Describe snapshots the sender.
func (s *Sender) Describe() SenderInfo {
	slots := s.Slots()
	info := SenderInfo{ID: s.id, Name: s.name, Slots: make([]SlotInfo, 0, len(slots))}
	for _, slot := range slots {
		info.Slots = append(info.Slots, DescribeSlot(slot))
	}
	return info
}

// Describe snapshots the receiver.
func (r *Receiver) Describe() ReceiverInfo {
	cbs := r.Callbacks()
	info := ReceiverInfo{ID: r.id, Name: r.name, Callbacks: make([]CallbackInfo, 0, len(cbs))}
	for _, cb := range cbs {
		info.Callbacks = append(info.Callbacks, DescribeCallback(cb))
	}
	return info
}

// Describe builds a topology snapshot of the given senders and receivers.
func Describe(senders []*Sender, receivers []*Receiver) Topology {
	topo := Topology{
		Senders:   make([]SenderInfo, 0, len(senders)),
		Receivers: make([]ReceiverInfo, 0, len(receivers)),
	}
	for _, s := range senders {
		topo.Senders = append(topo.Senders, s.Describe())
	}
	for _, r := range receivers {
		topo.Receivers = append(topo.Receivers, r.Describe())
	}
	return topo
}
