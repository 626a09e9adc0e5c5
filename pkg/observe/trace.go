package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/sigslot/pkg/signal"
)

const instrumentationName = "github.com/goclaw/sigslot/pkg/signal"

// TraceObserver turns broadcasts into spans. Each completed send becomes a
// span covering the broadcast, a child of the span in the sender's context.
// Handler failures are recorded as errors on the sender's span.
type TraceObserver struct {
	tracer trace.Tracer
}

// NewTrace creates a trace observer. A nil tracer selects the global
// tracer provider.
func NewTrace(tracer trace.Tracer) *TraceObserver {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &TraceObserver{tracer: tracer}
}

// Observe implements signal.Observer.
func (o *TraceObserver) Observe(ctx context.Context, ev signal.Event) {
	switch ev.Kind {
	case signal.EventSent:
		end := time.Now()
		_, span := o.tracer.Start(ctx, "signal.send "+ev.Slot,
			trace.WithTimestamp(end.Add(-ev.Duration)),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("signal.slot", ev.Slot),
				attribute.String("signal.type", ev.SlotType),
				attribute.Int("signal.delivered", ev.Delivered),
				attribute.Int("signal.failed", ev.Failed),
				attribute.Int("signal.stale", ev.Stale),
			),
		)
		if ev.Failed > 0 {
			span.SetStatus(codes.Error, "handler failed")
		}
		span.End(trace.WithTimestamp(end))

	case signal.EventHandlerFailed:
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.RecordError(ev.Err, trace.WithAttributes(
			attribute.String("signal.slot", ev.Slot),
			attribute.String("signal.callback", ev.Callback),
		))

	case signal.EventStalePurged:
		trace.SpanFromContext(ctx).AddEvent("signal.stale_purged", trace.WithAttributes(
			attribute.String("signal.slot", ev.Slot),
			attribute.Int("signal.stale", ev.Stale),
		))
	}
}
