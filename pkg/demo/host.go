package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/goclaw/sigslot/config"
	"github.com/goclaw/sigslot/pkg/logger"
	"github.com/goclaw/sigslot/pkg/passthrough"
	"github.com/goclaw/sigslot/pkg/signal"
)

// Stats counts what the handlers of a Host saw.
type Stats struct {
	Sent         uint64 `json:"sent"`
	Failed       uint64 `json:"failed"`
	Clicks       uint64 `json:"clicks"`
	Moves        uint64 `json:"moves"`
	Keys         uint64 `json:"keys"`
	Inputs       uint64 `json:"inputs"`
	WidgetClicks uint64 `json:"widget_clicks"`
	Audited      uint64 `json:"audited"`
	AuditDropped uint64 `json:"audit_dropped"`
}

// Widget is a UI element that listens to clicks for as long as something
// else keeps it alive.
type Widget struct {
	Name   string
	clicks atomic.Uint64
}

// Clicks returns the number of clicks the widget received.
func (w *Widget) Clicks() uint64 {
	return w.clicks.Load()
}

// Host owns the demo graph:
//
//	mouse (click, move) ─┐                      ┌─> ui    (exclusive per type, widgets)
//	keyboard (key)  ─────┼─> hub ══ tunnel ══> hub.out ─┤
//	system (heartbeat) ──┘                      └─> audit (queue of *Input)
//
// The hub only forwards: its pass-through connects every device slot
// directly to the receivers behind it.
type Host struct {
	reg *signal.Registry
	log logger.Logger

	mouse, keyboard, system, hubOut *signal.Sender
	hub, ui, audit                  *signal.Receiver

	clicks    *signal.Slot[*Click]
	moves     *signal.Slot[*Mouse]
	keys      *signal.Slot[*Key]
	heartbeat *signal.Slot[*Input]

	queue    *signal.Queue[*Input]
	interval atomic.Int64
	limit    int

	mu      sync.Mutex
	widgets []*Widget

	sent, failed, clickCount, moveCount, keyCount, inputCount atomic.Uint64
	widgetClicks, audited                                     atomic.Uint64
}

// NewHost builds and connects the graph described by cfg.
func NewHost(cfg config.DemoConfig, log logger.Logger) *Host {
	if log == nil {
		log = logger.Nop()
	}
	reg := NewRegistry()
	h := &Host{
		reg:      reg,
		log:      log,
		mouse:    signal.NewSender("mouse"),
		keyboard: signal.NewSender("keyboard"),
		system:   signal.NewSender("system"),
		hubOut:   signal.NewSender("hub.out"),
		hub:      signal.NewReceiver("hub"),
		ui:       signal.NewReceiver("ui"),
		audit:    signal.NewReceiver("audit"),
		limit:    cfg.Events,
	}
	h.SetInterval(cfg.Interval)

	h.clicks = signal.NewSlot[*Click](signal.WithSlotRegistry(reg), signal.WithSlotName("mouse.click"))
	h.moves = signal.NewSlot[*Mouse](signal.WithSlotRegistry(reg), signal.WithSlotName("mouse.move"))
	h.keys = signal.NewSlot[*Key](signal.WithSlotRegistry(reg), signal.WithSlotName("keyboard.key"))
	h.heartbeat = signal.NewSlot[*Input](signal.WithSlotRegistry(reg), signal.WithSlotName("system.heartbeat"))
	h.mouse.Register(h.clicks)
	h.mouse.Register(h.moves)
	h.keyboard.Register(h.keys)
	h.system.Register(h.heartbeat)

	in := passthrough.NewCallback[*Input](passthrough.WithRegistry(reg), passthrough.WithName("hub.in"))
	out := passthrough.NewSlot[*Input](passthrough.WithRegistry(reg), passthrough.WithName("hub.out"))
	passthrough.Forward(in, out)
	h.hub.Register(in)
	h.hubOut.Register(out)

	h.registerUI()
	for i := 0; i < cfg.Widgets; i++ {
		h.addWidget(fmt.Sprintf("widget-%d", i))
	}

	h.queue = signal.NewQueue[*Input](cfg.QueueSize, signal.WithRegistry(reg), signal.WithName("audit.queue"))
	h.audit.Register(h.queue.Callback())

	signal.Connect(h.hubOut, h.ui)
	signal.Connect(h.hubOut, h.audit)
	signal.Connect(h.mouse, h.hub)
	signal.Connect(h.keyboard, h.hub)
	signal.Connect(h.system, h.hub)
	return h
}

func (h *Host) registerUI() {
	opt := signal.WithRegistry(h.reg)
	signal.Handle(h.ui, func(c *Click) error {
		h.clickCount.Add(1)
		h.log.Debug("click", "seq", c.Seq, "button", c.Button, "x", c.X, "y", c.Y)
		return nil
	}, opt, signal.WithName("ui.click"))
	signal.Handle(h.ui, func(m *Mouse) error {
		h.moveCount.Add(1)
		return nil
	}, opt, signal.WithName("ui.move"))
	signal.Handle(h.ui, func(k *Key) error {
		h.keyCount.Add(1)
		if k.Code == 0 {
			return fmt.Errorf("%w: %s", ErrUnmappedKey, k)
		}
		return nil
	}, opt, signal.WithName("ui.key"))
	signal.Handle(h.ui, func(in *Input) error {
		h.inputCount.Add(1)
		return nil
	}, opt, signal.WithName("ui.input"))
}

// addWidget registers a click listener that lives as long as the widget.
// The handler reaches the widget through a weak pointer so that the
// callback itself does not keep it alive.
func (h *Host) addWidget(name string) *Widget {
	w := &Widget{Name: name}
	wp := weak.Make(w)
	signal.Handle(h.ui, func(*Click) error {
		if w := wp.Value(); w != nil {
			w.clicks.Add(1)
			h.widgetClicks.Add(1)
		}
		return nil
	},
		signal.WithRegistry(h.reg),
		signal.AsTransparent(),
		signal.WithTracking(signal.Weak(w)),
		signal.WithName("widget."+name),
	)

	h.mu.Lock()
	h.widgets = append(h.widgets, w)
	h.mu.Unlock()
	return w
}

// Widgets returns the widgets the host still references.
func (h *Host) Widgets() []*Widget {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Widget, 0, len(h.widgets))
	for _, w := range h.widgets {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// DropWidget releases the host's reference to the named widget. Its click
// listener is purged by the first click broadcast after the widget has been
// garbage collected.
func (h *Host) DropWidget(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, w := range h.widgets {
		if w != nil && w.Name == name {
			h.widgets[i] = nil
			return true
		}
	}
	return false
}

// SetInterval changes the pause between emitted events. It takes effect
// after the current pause.
func (h *Host) SetInterval(d time.Duration) {
	if d <= 0 {
		d = time.Millisecond
	}
	h.interval.Store(int64(d))
}

// Emit sends the event for step seq. Steps rotate over click, move, key and
// heartbeat; every seventh key carries an unmapped code.
func (h *Host) Emit(ctx context.Context, seq uint64) error {
	in := Input{Seq: seq, At: time.Now()}
	var err error
	switch seq % 4 {
	case 0:
		in.Device = "mouse"
		err = h.clicks.SendContext(ctx, &Click{Mouse: Mouse{Input: in, X: int(seq % 640), Y: int(seq % 480)}, Button: int(seq/4) % 3})
	case 1:
		in.Device = "mouse"
		err = h.moves.SendContext(ctx, &Mouse{Input: in, X: int(seq % 640), Y: int(seq % 480)})
	case 2:
		in.Device = "keyboard"
		code := rune('a' + seq%26)
		if (seq/4)%7 == 6 {
			code = 0
		}
		err = h.keys.SendContext(ctx, &Key{Input: in, Code: code})
	default:
		in.Device = "system"
		err = h.heartbeat.SendContext(ctx, &in)
	}

	h.sent.Add(1)
	if err != nil {
		h.failed.Add(1)
	}
	return err
}

// Run emits events until ctx is done or the configured number of events
// has been sent, and drains the audit queue meanwhile. Handler failures are
// logged and do not stop the loop.
func (h *Host) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.drain(ctx)
	}()
	defer func() {
		h.queue.Close()
		wg.Wait()
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for seq := uint64(0); h.limit <= 0 || seq < uint64(h.limit); seq++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := h.Emit(ctx, seq); err != nil {
			var herr *signal.HandlerError
			if !errors.As(err, &herr) {
				return err
			}
			h.log.WarnContext(ctx, "event handler failed", "seq", seq, "error", err)
		}
		timer.Reset(time.Duration(h.interval.Load()))
	}
	return nil
}

func (h *Host) drain(ctx context.Context) {
	for in := range h.queue.C() {
		h.audited.Add(1)
		h.log.DebugContext(ctx, "audit", "device", in.Device, "seq", in.Seq)
	}
}

// Stats returns a snapshot of the counters.
func (h *Host) Stats() Stats {
	return Stats{
		Sent:         h.sent.Load(),
		Failed:       h.failed.Load(),
		Clicks:       h.clickCount.Load(),
		Moves:        h.moveCount.Load(),
		Keys:         h.keyCount.Load(),
		Inputs:       h.inputCount.Load(),
		WidgetClicks: h.widgetClicks.Load(),
		Audited:      h.audited.Load(),
		AuditDropped: h.queue.Dropped(),
	}
}

// Topology describes every sender and receiver of the graph.
func (h *Host) Topology() signal.Topology {
	return signal.Describe(
		[]*signal.Sender{h.mouse, h.keyboard, h.system, h.hubOut},
		[]*signal.Receiver{h.hub, h.ui, h.audit},
	)
}

type topologyResponse struct {
	signal.Topology
	Stats Stats `json:"stats"`
}

// TopologyHandler serves the topology and the counters as JSON.
func (h *Host) TopologyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(topologyResponse{Topology: h.Topology(), Stats: h.Stats()}); err != nil {
			logger.FromContext(r.Context()).Warn("failed to encode topology", "error", err)
		}
	})
}
