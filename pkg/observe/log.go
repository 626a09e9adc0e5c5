// Package observe provides signal.Observer implementations that report
// dispatch events to the logging, tracing and metrics stacks.
package observe

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/goclaw/sigslot/pkg/logger"
	"github.com/goclaw/sigslot/pkg/signal"
)

// LogObserver writes dispatch events to a logger. Handler failures are
// always logged at warn level; all other events are debug records subject
// to a rate limit so that busy slots cannot flood the log.
type LogObserver struct {
	log        logger.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewLog creates a log observer allowing perSecond debug records with the
// given burst. perSecond <= 0 disables the limit.
func NewLog(l logger.Logger, perSecond float64, burst int) *LogObserver {
	if l == nil {
		l = logger.Global()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &LogObserver{
		log:     l.With("component", "signal"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Suppressed returns the number of debug records dropped by the rate limit
// since the last record that was written.
func (o *LogObserver) Suppressed() uint64 {
	return o.suppressed.Load()
}

// Observe implements signal.Observer.
func (o *LogObserver) Observe(ctx context.Context, ev signal.Event) {
	switch ev.Kind {
	case signal.EventHandlerFailed:
		o.log.WarnContext(ctx, "signal handler failed",
			"slot", ev.Slot,
			"slot_type", ev.SlotType,
			"callback", ev.Callback,
			"callback_type", ev.CallbackType,
			"error", ev.Err,
		)
		return
	case signal.EventStalePurged:
		o.log.InfoContext(ctx, "stale callbacks purged",
			"slot", ev.Slot,
			"count", ev.Stale,
		)
		return
	}

	if !o.limiter.Allow() {
		o.suppressed.Add(1)
		return
	}

	args := []any{"event", string(ev.Kind), "slot", ev.Slot, "slot_type", ev.SlotType}
	if ev.Callback != "" {
		args = append(args, "callback", ev.Callback, "callback_type", ev.CallbackType)
	}
	if ev.Kind == signal.EventSent {
		args = append(args,
			"delivered", ev.Delivered,
			"failed", ev.Failed,
			"stale", ev.Stale,
			"duration", ev.Duration,
		)
	}
	if n := o.suppressed.Swap(0); n > 0 {
		args = append(args, "suppressed", n)
	}
	o.log.DebugContext(ctx, "signal event", args...)
}
