package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goclaw/sigslot/config"
	"github.com/goclaw/sigslot/pkg/demo"
	"github.com/goclaw/sigslot/pkg/logger"
	"github.com/goclaw/sigslot/pkg/metrics"
	"github.com/goclaw/sigslot/pkg/observe"
	"github.com/goclaw/sigslot/pkg/signal"
	"github.com/goclaw/sigslot/pkg/telemetry/tracing"
	"github.com/goclaw/sigslot/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")
	watchFlag   = flag.Bool("watch", false, "Reload hot settings when the config file changes")

	// CLI overrides
	logLevel    = flag.String("log-level", "", "Override log level")
	debugMode   = flag.Bool("debug", false, "Enable debug mode")
	metricsPort = flag.Int("metrics-port", 0, "Override diagnostics server port")
	events      = flag.Int("events", -1, "Number of events to emit (0 runs until interrupted)")
	interval    = flag.Duration("interval", 0, "Override pause between events")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp(os.Stdout)
		return
	}
	if *versionFlag {
		printVersion(os.Stdout)
		return
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	logger.SetGlobal(log)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, loader.Source(), log); err != nil {
		log.Error("sigslot stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires the observers, starts the diagnostics server and runs the demo
// graph until ctx is done or the configured number of events was emitted.
func run(ctx context.Context, cfg *config.Config, source string, log logger.Logger) error {
	log.Info("Starting sigslot",
		"version", version.Version,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
		"config", source,
	)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics.Enabled
	mcfg.Port = cfg.Metrics.Port
	mcfg.Path = cfg.Metrics.Path
	mgr := metrics.NewManager(mcfg)

	signal.SetObserver(buildObserver(cfg.Dispatch, log, mgr))
	defer signal.SetObserver(nil)

	host := demo.NewHost(cfg.Demo, log.With("component", "demo"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if mgr.Enabled() {
		var routes []metrics.Route
		if cfg.Metrics.TopologyPath != "" {
			routes = append(routes, metrics.Route{Pattern: cfg.Metrics.TopologyPath, Handler: host.TopologyHandler()})
		}
		g.Go(func() error {
			log.Info("Starting diagnostics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path, "topology", cfg.Metrics.TopologyPath)
			return mgr.StartServer(gctx, cfg.Metrics.Port, cfg.Metrics.Path, routes...)
		})
	}

	if *watchFlag && source != "" {
		w, err := config.NewWatcher(source, nil,
			config.WithInitial(cfg),
			config.WithOverrides(buildOverrides()),
			config.WithWatcherLogger(log),
		)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer w.Stop()
		w.OnChange(func(r *config.Reload) {
			applyReload(r, host, log, mgr)
		}, signal.WithTracking(signal.Bound(gctx)))
		g.Go(func() error {
			if err := w.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		err := host.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	s := host.Stats()
	log.Info("sigslot stopped",
		"sent", s.Sent,
		"failed", s.Failed,
		"audited", s.Audited,
		"audit_dropped", s.AuditDropped,
	)
	return err
}

// buildObserver combines the observers enabled by cfg.
func buildObserver(cfg config.DispatchConfig, log logger.Logger, mgr *metrics.Manager) signal.Observer {
	var observers []signal.Observer
	if cfg.LogEvents {
		observers = append(observers, observe.NewLog(log, cfg.EventLogRate, cfg.EventLogBurst))
	}
	if cfg.TraceEvents {
		observers = append(observers, observe.NewTrace(nil))
	}
	if cfg.MetricEvents && mgr.Enabled() {
		observers = append(observers, mgr)
	}
	return observe.Multi(observers...)
}

func applyReload(r *config.Reload, host *demo.Host, log logger.Logger, mgr *metrics.Manager) {
	if !r.HotChanged() {
		return
	}
	log.SetLevel(logger.ParseLevel(r.Config.Log.Level))
	host.SetInterval(r.Config.Demo.Interval)
	signal.SetObserver(buildObserver(r.Config.Dispatch, log, mgr))
	log.Info("configuration reloaded",
		"log_level", r.Config.Log.Level,
		"interval", r.Config.Demo.Interval,
		"log_events", r.Config.Dispatch.LogEvents,
		"trace_events", r.Config.Dispatch.TraceEvents,
	)
}

func newLogger(cfg *config.Config) logger.Logger {
	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.App.Debug {
		level = logger.DebugLevel
	}
	return logger.New(&logger.Config{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cfg.Log.Output,
		AddSource: cfg.Log.AddSource,
	})
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}
	if *metricsPort != 0 {
		overrides["metrics.port"] = *metricsPort
	}
	if *events >= 0 {
		overrides["demo.events"] = *events
	}
	if *interval > 0 {
		overrides["demo.interval"] = interval.String()
	}

	return overrides
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, "sigslot - typed signal/slot dispatch")
	for _, k := range []string{"version", "buildTime", "gitCommit", "goVersion"} {
		fmt.Fprintf(w, "%-10s %s\n", k+":", version.Info()[k])
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, "sigslot - typed signal/slot dispatch demo host\n\n")
	fmt.Fprintf(w, "Usage: sigslot [options]\n\n")
	fmt.Fprintf(w, "Options:\n")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  sigslot                                 # Run with default config\n")
	fmt.Fprintf(w, "  sigslot -config sigslot.yaml -watch     # Hot-reload log level and interval\n")
	fmt.Fprintf(w, "  sigslot -events 100 -interval 10ms      # Emit 100 events and exit\n")
	fmt.Fprintf(w, "  SIGSLOT_DISPATCH_TRACE_EVENTS=true sigslot\n")
}
