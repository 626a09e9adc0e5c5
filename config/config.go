// Package config provides configuration management for sigslot hosts.
package config

import (
	"fmt"
	"time"
)

// Config is the configuration of a sigslot host process.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Dispatch controls how dispatch events are observed.
	Dispatch DispatchConfig `mapstructure:"dispatch"`

	// Metrics is the Prometheus and diagnostics endpoint configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the OpenTelemetry configuration.
	Tracing TracingConfig `mapstructure:"tracing"`

	// Demo configures the bundled input event simulation.
	Demo DemoConfig `mapstructure:"demo"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment.
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Format is the log format (json, text).
	Format string `mapstructure:"format" validate:"required,oneof=json text"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output"`

	// AddSource adds the source position to every record.
	AddSource bool `mapstructure:"add_source"`
}

// DispatchConfig selects the observers installed on the dispatch core.
type DispatchConfig struct {
	// LogEvents writes dispatch events to the logger.
	LogEvents bool `mapstructure:"log_events"`

	// TraceEvents turns broadcasts into spans.
	TraceEvents bool `mapstructure:"trace_events"`

	// MetricEvents counts dispatch events in Prometheus.
	MetricEvents bool `mapstructure:"metric_events"`

	// EventLogRate is the number of debug event records per second. 0 means unlimited.
	EventLogRate float64 `mapstructure:"event_log_rate" validate:"min=0"`

	// EventLogBurst is the burst size of the event log rate limit.
	EventLogBurst int `mapstructure:"event_log_burst" validate:"min=1"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path" validate:"required,startswith=/"`

	// Port is the diagnostics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// TopologyPath serves the sender/receiver topology as JSON. Empty disables it.
	TopologyPath string `mapstructure:"topology_path"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	// Enabled enables tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter type.
	Exporter string `mapstructure:"exporter" validate:"omitempty,oneof=otlpgrpc"`

	// Endpoint is the collector endpoint (host:port or URL).
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds a single export.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are sent with every export request.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler is always_on, always_off or parent_ratio.
	Sampler string `mapstructure:"sampler" validate:"omitempty,oneof=always_on always_off parent_ratio"`

	// SampleRate is the ratio used by parent_ratio (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// DemoConfig configures the simulated input devices of the demo host.
type DemoConfig struct {
	// Interval between simulated input events.
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`

	// Events is the number of events to emit before exiting. 0 runs until interrupted.
	Events int `mapstructure:"events" validate:"min=0"`

	// Widgets is the number of weakly tracked widgets created at start.
	Widgets int `mapstructure:"widgets" validate:"min=0,max=1000"`

	// QueueSize is the buffer of the asynchronous audit queue.
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a short description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Env: %s, Metrics: :%d}",
		c.App.Name, c.App.Environment, c.Metrics.Port)
}
