package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/sigslot/pkg/signal"
)

func (m *Manager) initDispatchMetrics(cfg Config) {
	m.sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_sends_total",
			Help: "Total number of broadcasts by slot type",
		},
		[]string{"type"},
	)

	m.deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_deliveries_total",
			Help: "Total number of successful handler invocations by slot type",
		},
		[]string{"type"},
	)

	m.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_handler_failures_total",
			Help: "Total number of failed or panicking handler invocations",
		},
		[]string{"type", "callback_type"},
	)

	m.stalePurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_stale_purged_total",
			Help: "Total number of invokers removed because their tracked holder was gone",
		},
		[]string{"type"},
	)

	m.connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_connections_total",
			Help: "Connection protocol outcomes by kind",
		},
		[]string{"kind"},
	)

	m.sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signal_send_duration_seconds",
			Help:    "Broadcast duration in seconds",
			Buckets: cfg.SendDurationBuckets,
		},
		[]string{"type"},
	)

	m.registry.MustRegister(m.sends)
	m.registry.MustRegister(m.deliveries)
	m.registry.MustRegister(m.failures)
	m.registry.MustRegister(m.stalePurged)
	m.registry.MustRegister(m.connections)
	m.registry.MustRegister(m.sendDuration)
}

// Observe implements signal.Observer.
func (m *Manager) Observe(ctx context.Context, ev signal.Event) {
	if !m.enabled {
		return
	}

	switch ev.Kind {
	case signal.EventSent:
		m.sends.WithLabelValues(ev.SlotType).Inc()
		m.deliveries.WithLabelValues(ev.SlotType).Add(float64(ev.Delivered))
		observer := m.sendDuration.WithLabelValues(ev.SlotType)
		if labels, ok := traceExemplarLabels(ctx); ok {
			if eo, ok := observer.(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(ev.Duration.Seconds(), labels)
				return
			}
		}
		observer.Observe(ev.Duration.Seconds())
	case signal.EventHandlerFailed:
		m.failures.WithLabelValues(ev.SlotType, ev.CallbackType).Inc()
	case signal.EventStalePurged:
		m.stalePurged.WithLabelValues(ev.SlotType).Add(float64(ev.Stale))
	case signal.EventConnected, signal.EventRejected, signal.EventDuplicate, signal.EventDisconnected:
		m.connections.WithLabelValues(string(ev.Kind)).Inc()
	}
}

func traceExemplarLabels(ctx context.Context) (prometheus.Labels, bool) {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil, false
	}
	return prometheus.Labels{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	}, true
}
