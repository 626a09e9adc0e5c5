// Package metrics provides Prometheus instrumentation for signal dispatch.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the metric registry and the dispatch metrics.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Dispatch metrics
	sends        *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	stalePurged  *prometheus.CounterVec
	connections  *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Port    int
	Path    string

	SendDurationBuckets []float64
	HTTPDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Port:                9091,
		Path:                "/metrics",
		SendDurationBuckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 1},
		HTTPDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a metrics manager. A disabled manager records nothing.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}
	m.initDispatchMetrics(cfg)
	m.initHTTPMetrics(cfg)
	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Route mounts an additional handler next to the metrics endpoint.
type Route struct {
	Pattern string
	Handler http.Handler
}

// Router builds the diagnostics router: the metrics endpoint at path plus
// the extra routes. Requests are counted by the HTTP metrics.
func (m *Manager) Router(path string, routes ...Route) http.Handler {
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Handle(path, m.Handler())
	for _, route := range routes {
		r.Handle(route.Pattern, route.Handler)
	}
	return r
}

// StartServer serves Router on port until ctx is done. It returns nil
// after a clean shutdown.
func (m *Manager) StartServer(ctx context.Context, port int, path string, routes ...Route) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Router(path, routes...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NoOpManager returns a disabled manager.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
