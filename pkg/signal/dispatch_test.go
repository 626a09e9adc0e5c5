package signal

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"testing"
	"weak"
)

func TestCallback_SpecificityOrdering(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	base := NewCallback(record[*inputEvent](rec, "input"), WithRegistry(r))
	derived := NewCallback(record[*mouseEvent](rec, "mouse"), WithRegistry(r))

	if !base.Accepts(TypeOf[*mouseEvent](r)) {
		t.Error("callback for input should accept a mouse slot")
	}
	if derived.Accepts(TypeOf[*inputEvent](r)) {
		t.Error("callback for mouse must not accept an input slot")
	}
	if !CallbackLess(derived, base) {
		t.Error("derived callback should sort before base callback")
	}
	if CallbackLess(base, derived) {
		t.Error("base callback must not sort before derived callback")
	}
}

func TestCallbackLess_Rules(t *testing.T) {
	r := newInputRegistry(t)
	nop := func(*inputEvent) error { return nil }

	older := NewCallback(nop, WithRegistry(r), AsTransparent())
	older.SetPrecedence(1)
	newer := NewCallback(nop, WithRegistry(r), AsTransparent())
	newer.SetPrecedence(2)
	if !CallbackLess(newer, older) || CallbackLess(older, newer) {
		t.Error("transparent callbacks should sort by descending precedence")
	}

	exclusive := NewCallback(nop, WithRegistry(r))
	exclusive.SetPrecedence(0)
	if !CallbackLess(exclusive, newer) || CallbackLess(newer, exclusive) {
		t.Error("exclusive callbacks should sort before transparent callbacks")
	}

	key := NewCallback(func(*keyEvent) error { return nil }, WithRegistry(r))
	key.SetPrecedence(5)
	mouse := NewCallback(func(*mouseEvent) error { return nil }, WithRegistry(r))
	mouse.SetPrecedence(6)
	if !CallbackLess(mouse, key) || CallbackLess(key, mouse) {
		t.Error("incomparable exclusive callbacks should fall back to precedence")
	}
}

func TestReceiver_OrdersCallbacks(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	recv := NewReceiver("ui")
	Handle(recv, record[*inputEvent](rec, "input"), WithRegistry(r), WithName("input"))
	Handle(recv, record[*inputEvent](rec, "audit"), WithRegistry(r), WithName("audit"), AsTransparent())
	Handle(recv, record[*clickEvent](rec, "click"), WithRegistry(r), WithName("click"))
	Handle(recv, record[*keyEvent](rec, "key"), WithRegistry(r), WithName("key"))
	Handle(recv, record[*mouseEvent](rec, "mouse"), WithRegistry(r), WithName("mouse"))

	var names []string
	for _, cb := range recv.Callbacks() {
		names = append(names, cb.Name())
	}

	// key and click are both ready first; key has the higher precedence.
	want := []string{"key", "click", "mouse", "input", "audit"}
	if !slices.Equal(names, want) {
		t.Errorf("callbacks = %v, want %v", names, want)
	}
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			a, b := recv.Callbacks()[i], recv.Callbacks()[j]
			if SpecificityLess(b.Type(), a.Type()) && a.Invocation() == b.Invocation() {
				t.Errorf("%s sorted before the more specific %s", a.Name(), b.Name())
			}
		}
	}
}

func TestConnect_ExclusiveUniqueness(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	recv := NewReceiver("ui")
	Handle(recv, record[*inputEvent](rec, "input"), WithRegistry(r))
	Handle(recv, record[*clickEvent](rec, "click"), WithRegistry(r))
	Handle(recv, record[*mouseEvent](rec, "mouse"), WithRegistry(r))

	clicks := NewSlot[*clickEvent](WithSlotRegistry(r))
	moves := NewSlot[*mouseEvent](WithSlotRegistry(r))
	sender := NewSender("pointer")
	sender.Register(moves)
	sender.Register(clicks)

	if !Connect(sender, recv) {
		t.Fatal("expected connection")
	}
	if clicks.NumTargets() != 1 || moves.NumTargets() != 1 {
		t.Fatalf("targets = %d/%d, want 1/1", clicks.NumTargets(), moves.NumTargets())
	}

	if err := clicks.Send(&clickEvent{}); err != nil {
		t.Fatal(err)
	}
	if err := moves.Send(&mouseEvent{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.calls, []string{"click", "mouse"}) {
		t.Errorf("calls = %v, want [click mouse]", rec.calls)
	}
}

func TestConnect_TransparentAccumulation(t *testing.T) {
	orders := [][]string{
		{"exclusive", "first", "second"},
		{"first", "exclusive", "second"},
		{"first", "second", "exclusive"},
	}
	for _, order := range orders {
		t.Run(order[0]+"_"+order[1]+"_"+order[2], func(t *testing.T) {
			r := newInputRegistry(t)
			rec := &recorder{}
			recv := NewReceiver("ui")
			for _, name := range order {
				if name == "exclusive" {
					Handle(recv, record[*mouseEvent](rec, name), WithRegistry(r))
					continue
				}
				Handle(recv, record[*inputEvent](rec, name), WithRegistry(r), AsTransparent())
			}

			slot := NewSlot[*mouseEvent](WithSlotRegistry(r))
			if !slot.Connect(recv) {
				t.Fatal("expected connection")
			}
			if err := slot.Send(&mouseEvent{}); err != nil {
				t.Fatal(err)
			}
			want := []string{"exclusive", "second", "first"}
			if !slices.Equal(rec.calls, want) {
				t.Errorf("calls = %v, want %v", rec.calls, want)
			}
		})
	}
}

func TestConnect_TransparentAheadOfExclusiveFires(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	audit := NewCallback(record[*inputEvent](rec, "audit"), WithRegistry(r), AsTransparent())
	mouse := NewCallback(record[*mouseEvent](rec, "mouse"), WithRegistry(r))
	input := NewCallback(record[*inputEvent](rec, "input"), WithRegistry(r))

	// Bypass sorting to place the transparent callback first.
	recv := &Receiver{name: "manual", callbacks: []CallbackBase{audit, mouse, input}}
	slot := NewSlot[*clickEvent](WithSlotRegistry(r))
	if !slot.Connect(recv) {
		t.Fatal("expected connection")
	}
	if got := slot.NumTargets(); got != 2 {
		t.Fatalf("targets = %d, want 2", got)
	}
	if err := slot.Send(&clickEvent{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.calls, []string{"audit", "mouse"}) {
		t.Errorf("calls = %v, want [audit mouse]", rec.calls)
	}
}

type emptyHolder struct{}

func TestTracking_WeakZeroSizeHolder(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	tr := Weak(&emptyHolder{})
	if tr.Policy() != "weak" {
		t.Errorf("policy = %q, want weak", tr.Policy())
	}

	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	NewCallback(record[*inputEvent](rec, "empty"), WithRegistry(r), WithTracking(tr)).Connect(slot)

	runtime.GC()
	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if rec.count("empty") != 1 {
		t.Errorf("calls = %d, want 1", rec.count("empty"))
	}
	if slot.NumTargets() != 1 {
		t.Errorf("targets = %d, want 1", slot.NumTargets())
	}

	lock := Weak[emptyHolder](nil).Lock()
	if lock.Held() {
		t.Error("nil holder must not deliver")
	}
}

func TestTracking_WeakHolderCollected(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	h := &holder{name: "widget"}

	recv := NewReceiver("ui")
	recv.Register(NewCallback(record[*inputEvent](rec, "weak"), WithRegistry(r), AsTransparent(), WithTracking(Weak(h))))
	recv.Register(NewCallback(record[*inputEvent](rec, "plain"), WithRegistry(r), AsTransparent()))

	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	slot.Connect(recv)
	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if rec.count("weak") != 1 {
		t.Fatalf("weak callback calls = %d, want 1", rec.count("weak"))
	}

	h = nil
	runtime.GC()
	runtime.GC()

	if got := slot.NumTargets(); got != 2 {
		t.Fatalf("targets before discovering send = %d, want 2", got)
	}
	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if rec.count("weak") != 1 {
		t.Error("collected holder received a signal")
	}
	if rec.count("plain") != 2 {
		t.Errorf("plain callback calls = %d, want 2", rec.count("plain"))
	}
	if got := slot.NumTargets(); got != 1 {
		t.Errorf("targets after discovering send = %d, want 1", got)
	}
}

func TestTracking_SharedKeepsHolderAlive(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	h := &holder{name: "widget"}
	wp := weak.Make(h)

	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	cb := NewCallback(record[*inputEvent](rec, "shared"), WithRegistry(r), WithTracking(Shared(h)))
	if !cb.Connect(slot) {
		t.Fatal("expected connection")
	}
	h = nil
	runtime.GC()
	runtime.GC()

	if wp.Value() == nil {
		t.Fatal("shared holder was collected while connected")
	}
	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if rec.count("shared") != 1 {
		t.Errorf("calls = %d, want 1", rec.count("shared"))
	}
	if slot.NumTargets() != 1 {
		t.Errorf("targets = %d, want 1", slot.NumTargets())
	}
}

func TestTracking_BoundContext(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	NewCallback(record[*inputEvent](rec, "bound"), WithRegistry(r), WithTracking(Bound(ctx))).Connect(slot)

	_ = slot.Send(&inputEvent{})
	cancel()
	_ = slot.Send(&inputEvent{})

	if rec.count("bound") != 1 {
		t.Errorf("calls = %d, want 1", rec.count("bound"))
	}
	if slot.NumTargets() != 0 {
		t.Errorf("targets = %d, want 0", slot.NumTargets())
	}
}

func TestConnect_Idempotent(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	slot := NewSlot[*mouseEvent](WithSlotRegistry(r))
	cb := NewCallback(record[*inputEvent](rec, "input"), WithRegistry(r))

	if !cb.Connect(slot) {
		t.Fatal("first connect should succeed")
	}
	if cb.Connect(slot) {
		t.Error("second connect should return false")
	}
	if slot.NumTargets() != 1 {
		t.Errorf("targets = %d, want 1", slot.NumTargets())
	}
}

func TestConnect_RepeatedSenderConnect(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	recv := NewReceiver("ui")
	Handle(recv, record[*inputEvent](rec, "input"), WithRegistry(r))
	Handle(recv, record[*mouseEvent](rec, "mouse"), WithRegistry(r))
	Handle(recv, record[*inputEvent](rec, "audit"), WithRegistry(r), AsTransparent())

	slot := NewSlot[*clickEvent](WithSlotRegistry(r))
	sender := NewSender("pointer")
	sender.Register(slot)
	sender.Connect(recv)
	sender.Connect(recv)

	if slot.NumTargets() != 2 {
		t.Errorf("targets = %d, want 2", slot.NumTargets())
	}
}

func TestConnect_ReconnectReplacesLessSpecificExclusive(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	recv := NewReceiver("ui")
	Handle(recv, record[*inputEvent](rec, "input"), WithRegistry(r))

	slot := NewSlot[*clickEvent](WithSlotRegistry(r))
	sender := NewSender("pointer")
	sender.Register(slot)
	sender.Connect(recv)
	if slot.NumTargets() != 1 {
		t.Fatalf("targets = %d, want 1", slot.NumTargets())
	}

	Handle(recv, record[*clickEvent](rec, "click"), WithRegistry(r))
	sender.Connect(recv)

	if slot.NumTargets() != 1 {
		t.Errorf("targets = %d, want 1", slot.NumTargets())
	}
	if err := slot.Send(&clickEvent{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.calls, []string{"click"}) {
		t.Errorf("calls = %v, want [click]", rec.calls)
	}
}

func TestConnect_IncomparableTypes(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	slot := NewSlot[*keyEvent](WithSlotRegistry(r))
	cb := NewCallback(record[*tickEvent](rec, "tick"), WithRegistry(r))

	if cb.Connect(slot) {
		t.Error("unrelated types must not connect")
	}

	recv := NewReceiver("clock")
	recv.Register(cb)
	sender := NewSender("keyboard")
	sender.Register(slot)
	if sender.Connect(recv) {
		t.Error("sender connect should report no connection")
	}
	if slot.NumTargets() != 0 {
		t.Errorf("targets = %d, want 0", slot.NumTargets())
	}
}

func TestDisconnect_RemovesReceiverCallbacks(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	recv := NewReceiver("ui")
	Handle(recv, record[*mouseEvent](rec, "mouse"), WithRegistry(r))
	Handle(recv, record[*inputEvent](rec, "audit"), WithRegistry(r), AsTransparent())

	slot := NewSlot[*mouseEvent](WithSlotRegistry(r))
	sender := NewSender("pointer")
	sender.Register(slot)
	sender.Connect(recv)

	if !Disconnect(sender, recv) {
		t.Fatal("expected disconnect to remove callbacks")
	}
	if slot.NumTargets() != 0 {
		t.Errorf("targets = %d, want 0", slot.NumTargets())
	}
	if err := slot.Send(&mouseEvent{}); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("calls after disconnect: %v", rec.calls)
	}
	if sender.Disconnect(recv) {
		t.Error("second disconnect should report nothing removed")
	}
}

func TestSend_ContinuesAndAggregatesFailures(t *testing.T) {
	r := newInputRegistry(t)
	errBoom := errors.New("boom")
	calls := 0

	slot := NewSlot[*inputEvent](WithSlotRegistry(r), WithSlotName("input"))
	recv := NewReceiver("ui")
	Handle(recv, func(*inputEvent) error { calls++; return nil }, WithRegistry(r), AsTransparent())
	Handle(recv, func(*inputEvent) error { calls++; return errBoom }, WithRegistry(r), AsTransparent(), WithName("failing"))
	Handle(recv, func(*inputEvent) error { calls++; panic("bad state") }, WithRegistry(r), AsTransparent(), WithName("panicking"))
	slot.Connect(recv)

	err := slot.Send(&inputEvent{})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("expected handler error, got %v", err)
	}
	if !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("expected panic error, got %v", err)
	}

	var herr *HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HandlerError, got %T", err)
	}
	if herr.Slot != "input" || herr.Callback != "failing" {
		t.Errorf("handler error = %+v", herr)
	}
	inputType := TypeOf[*inputEvent](r).Name()
	if herr.SlotType != inputType || herr.CallbackType != inputType {
		t.Errorf("types = %q/%q, want %q", herr.SlotType, herr.CallbackType, inputType)
	}

	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatal("expected *PanicError")
	}
	if perr.Value != "bad state" || perr.Stack == "" {
		t.Errorf("panic error = %+v", perr)
	}
	if slot.NumTargets() != 3 {
		t.Error("failing handlers must stay connected")
	}
}

func TestSend_ReentrantConnect(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	late := NewCallback(record[*inputEvent](rec, "late"), WithRegistry(r), AsTransparent())

	NewCallback(func(ev *inputEvent) error {
		rec.calls = append(rec.calls, "first")
		late.Connect(slot)
		return nil
	}, WithRegistry(r), AsTransparent()).Connect(slot)

	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.calls, []string{"first"}) {
		t.Errorf("calls = %v, callbacks added during a send must wait for the next one", rec.calls)
	}
	if err := slot.Send(&inputEvent{}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.calls, []string{"first", "first", "late"}) {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestSend_ReentrantDisconnectAndSend(t *testing.T) {
	r := newInputRegistry(t)
	rec := &recorder{}
	slot := NewSlot[*inputEvent](WithSlotRegistry(r))
	echo := NewSlot[*tickEvent](WithSlotRegistry(r))
	NewCallback(record[*tickEvent](rec, "tick"), WithRegistry(r)).Connect(echo)

	var self *Callback
	self = NewCallback(func(*inputEvent) error {
		rec.calls = append(rec.calls, "once")
		self.Disconnect(slot)
		return echo.Send(&tickEvent{})
	}, WithRegistry(r))
	self.Connect(slot)

	for i := 0; i < 2; i++ {
		if err := slot.Send(&inputEvent{}); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(rec.calls, []string{"once", "tick"}) {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestSendDefault(t *testing.T) {
	r := newInputRegistry(t)
	var got *mouseEvent
	slot := NewSlot[*mouseEvent](WithSlotRegistry(r))
	NewCallback(func(m *mouseEvent) error { got = m; return nil }, WithRegistry(r)).Connect(slot)

	if err := slot.SendDefault(); err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("pointer signal should be allocated")
	}
	if got.X != 0 || got.Source != "" {
		t.Errorf("default signal not zero: %+v", got)
	}

	var n = -1
	counts := NewSlot[int](WithSlotRegistry(r))
	NewCallback(func(v int) error { n = v; return nil }, WithRegistry(r)).Connect(counts)
	if err := counts.SendDefault(); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
}

func TestNewCallback_NilHandlerPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrNilHandler {
			t.Errorf("recovered %v, want ErrNilHandler", r)
		}
	}()
	NewCallback[*inputEvent](nil)
}

func TestCallback_RelayRejectsForeignSignal(t *testing.T) {
	cb := NewCallback(func(*inputEvent) error { return nil }, WithRegistry(NewRegistry()))
	err := cb.Relay().fn("not an event")
	if !errors.Is(err, ErrSignalType) {
		t.Errorf("expected ErrSignalType, got %v", err)
	}
}

func TestFromHandler(t *testing.T) {
	r := newInputRegistry(t)
	h := &keyLogger{}
	slot := NewSlot[*keyEvent](WithSlotRegistry(r))
	FromHandler[*keyEvent](h, WithRegistry(r)).Connect(slot)

	_ = slot.Send(&keyEvent{Code: 'a'})
	_ = slot.Send(&keyEvent{Code: 'b'})
	if string(h.keys) != "ab" {
		t.Errorf("keys = %q, want ab", string(h.keys))
	}
}

type keyLogger struct {
	keys []rune
}

func (k *keyLogger) On(ev *keyEvent) error {
	k.keys = append(k.keys, ev.Code)
	return nil
}

func TestSender_OrdersSlotsBySpecificity(t *testing.T) {
	r := newInputRegistry(t)
	input := NewSlot[*inputEvent](WithSlotRegistry(r), WithSlotName("input"))
	key := NewSlot[*keyEvent](WithSlotRegistry(r), WithSlotName("key"))
	click := NewSlot[*clickEvent](WithSlotRegistry(r), WithSlotName("click"))
	mouse := NewSlot[*mouseEvent](WithSlotRegistry(r), WithSlotName("mouse"))

	sender := NewSender("devices")
	sender.Register(input)
	sender.Register(key)
	sender.Register(click)
	sender.Register(mouse)
	if sender.Register(mouse) {
		t.Error("duplicate registration should return false")
	}

	var names []string
	for _, s := range sender.Slots() {
		names = append(names, s.Name())
	}
	want := []string{"key", "click", "mouse", "input"}
	if !slices.Equal(names, want) {
		t.Errorf("slots = %v, want %v", names, want)
	}

	if !sender.Unregister(key) || sender.Len() != 3 {
		t.Error("unregister failed")
	}
}
