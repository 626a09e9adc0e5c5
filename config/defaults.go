package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "sigslot",
			Version:     "dev",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Dispatch: DispatchConfig{
			LogEvents:     true,
			TraceEvents:   false,
			MetricEvents:  true,
			EventLogRate:  50,
			EventLogBurst: 100,
		},
		Metrics: MetricsConfig{
			Enabled:      true,
			Path:         "/metrics",
			Port:         9091,
			TopologyPath: "/debug/topology",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "parent_ratio",
			SampleRate: 0.1,
		},
		Demo: DemoConfig{
			Interval:  500 * time.Millisecond,
			Events:    0,
			Widgets:   3,
			QueueSize: 64,
		},
	}
}
