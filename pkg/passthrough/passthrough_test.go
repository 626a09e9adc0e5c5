package passthrough

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/sigslot/pkg/signal"
)

var (
	_ signal.CallbackBase = (*Callback)(nil)
	_ signal.SlotBase     = (*Slot)(nil)
)

type event struct{ Name string }

type pointerEvent struct {
	event
	X int
}

type timerEvent struct{}

func newRegistry(t *testing.T) *signal.Registry {
	t.Helper()
	r := signal.NewRegistry()
	_, err := signal.Derive(r, func(p *pointerEvent) *event { return &p.event })
	require.NoError(t, err)
	return r
}

// tunnel is a component relaying events from an inner sender to whatever
// its own sender gets connected to.
type tunnel struct {
	inbound  *Callback
	outbound *Slot
	receiver *signal.Receiver
	sender   *signal.Sender
}

func newTunnel(r *signal.Registry) *tunnel {
	tn := &tunnel{
		inbound:  NewCallback[*event](WithRegistry(r), WithName("in")),
		outbound: NewSlot[*event](WithRegistry(r), WithName("out")),
		receiver: signal.NewReceiver("tunnel"),
		sender:   signal.NewSender("tunnel"),
	}
	Forward(tn.inbound, tn.outbound)
	tn.receiver.Register(tn.inbound)
	tn.sender.Register(tn.outbound)
	return tn
}

func TestForward_InnerConnectedFirst(t *testing.T) {
	r := newRegistry(t)
	tn := newTunnel(r)

	pointer := signal.NewSlot[*pointerEvent](signal.WithSlotRegistry(r))
	inner := signal.NewSender("device")
	inner.Register(pointer)
	require.True(t, inner.Connect(tn.receiver))
	assert.Equal(t, 0, pointer.NumTargets())

	var got []string
	outer := signal.NewReceiver("app")
	signal.Handle(outer, func(e *event) error {
		got = append(got, e.Name)
		return nil
	}, signal.WithRegistry(r))
	require.True(t, tn.sender.Connect(outer))

	assert.Equal(t, 1, pointer.NumTargets())
	require.NoError(t, pointer.Send(&pointerEvent{event: event{Name: "move"}}))
	assert.Equal(t, []string{"move"}, got)
	assert.Equal(t, []signal.SlotBase{pointer}, tn.inbound.Slots())
	assert.Equal(t, []*signal.Receiver{outer}, tn.outbound.Receivers())
}

func TestForward_OuterConnectedFirst(t *testing.T) {
	r := newRegistry(t)
	tn := newTunnel(r)

	calls := 0
	outer := signal.NewReceiver("app")
	signal.Handle(outer, func(*event) error { calls++; return nil }, signal.WithRegistry(r))
	require.True(t, tn.sender.Connect(outer))

	pointer := signal.NewSlot[*pointerEvent](signal.WithSlotRegistry(r))
	require.True(t, pointer.Connect(tn.receiver))

	require.NoError(t, pointer.Send(&pointerEvent{}))
	assert.Equal(t, 1, calls)
}

func TestForward_Disconnect(t *testing.T) {
	r := newRegistry(t)
	tn := newTunnel(r)

	outer := signal.NewReceiver("app")
	signal.Handle(outer, func(*event) error { return nil }, signal.WithRegistry(r))
	tn.sender.Connect(outer)

	pointer := signal.NewSlot[*pointerEvent](signal.WithSlotRegistry(r))
	pointer.Connect(tn.receiver)
	require.Equal(t, 1, pointer.NumTargets())

	assert.True(t, tn.sender.Disconnect(outer))
	assert.Equal(t, 0, pointer.NumTargets())
	assert.Empty(t, tn.outbound.Receivers())

	tn.sender.Connect(outer)
	require.Equal(t, 1, pointer.NumTargets())
	assert.True(t, pointer.Disconnect(tn.receiver))
	assert.Equal(t, 0, pointer.NumTargets())
	assert.Empty(t, tn.inbound.Slots())
}

func TestCallback_RejectsUnrelatedSlot(t *testing.T) {
	r := newRegistry(t)
	tn := newTunnel(r)

	timer := signal.NewSlot[*timerEvent](signal.WithSlotRegistry(r))
	assert.False(t, tn.inbound.Connect(timer))
	assert.False(t, timer.Connect(tn.receiver))
	assert.Empty(t, tn.inbound.Slots())
}

func TestCallback_IsTransparent(t *testing.T) {
	r := newRegistry(t)
	tn := newTunnel(r)

	// A more specific exclusive callback in the same receiver does not
	// shadow the tunnel.
	local := 0
	signal.Handle(tn.receiver, func(*pointerEvent) error { local++; return nil }, signal.WithRegistry(r))

	remote := 0
	outer := signal.NewReceiver("app")
	signal.Handle(outer, func(*event) error { remote++; return nil }, signal.WithRegistry(r))
	tn.sender.Connect(outer)

	pointer := signal.NewSlot[*pointerEvent](signal.WithSlotRegistry(r))
	pointer.Connect(tn.receiver)
	require.NoError(t, pointer.Send(&pointerEvent{}))

	assert.Equal(t, 1, local)
	assert.Equal(t, 1, remote)
	assert.Equal(t, signal.Transparent, tn.inbound.Invocation())
}

func TestSlot_HoldsNoInvokers(t *testing.T) {
	s := NewSlot[*event](WithRegistry(signal.NewRegistry()))
	assert.False(t, s.Attach(nil))
	assert.False(t, s.Detach(nil))
	assert.Equal(t, 0, s.NumTargets())
	assert.Nil(t, s.Source())
	assert.True(t, s.Connect(signal.NewReceiver("r")))
}

func TestForward_ReplaysExistingConnections(t *testing.T) {
	r := newRegistry(t)
	in := NewCallback[*event](WithRegistry(r))
	out := NewSlot[*event](WithRegistry(r))

	pointer := signal.NewSlot[*pointerEvent](signal.WithSlotRegistry(r))
	require.True(t, in.Connect(pointer))

	outer := signal.NewReceiver("app")
	signal.Handle(outer, func(*event) error { return nil }, signal.WithRegistry(r))
	require.True(t, out.Connect(outer))
	assert.Equal(t, 0, pointer.NumTargets())

	Forward(in, out)
	assert.Equal(t, 1, pointer.NumTargets())
	assert.Same(t, out, in.Target())
	assert.Same(t, in, out.Source())
}
