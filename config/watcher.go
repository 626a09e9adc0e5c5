package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goclaw/sigslot/pkg/logger"
	"github.com/goclaw/sigslot/pkg/signal"
)

// Reload is broadcast after the watched file produced a valid configuration.
type Reload struct {
	Config   *Config
	Previous *Config
}

// HotChanged reports whether a hot-reloadable value differs between the two
// configurations.
func (r *Reload) HotChanged() bool {
	if r.Previous == nil {
		return true
	}
	return ExtractHotReloadable(r.Config).Changed(ExtractHotReloadable(r.Previous))
}

// Watcher monitors a configuration file and broadcasts every successful
// reload on a signal slot.
type Watcher struct {
	mu         sync.RWMutex
	watcher    *fsnotify.Watcher
	loader     *Loader
	configPath string
	overrides  map[string]interface{}
	current    *Config
	reloads    *signal.Slot[*Reload]
	debounce   time.Duration
	log        logger.Logger
	stopOnce   sync.Once
	stopCh     chan struct{}
	running    bool
}

// WatcherOption is a functional option for Watcher configuration.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period after the last file event before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOverrides re-applies overrides on every reload.
func WithOverrides(overrides map[string]interface{}) WatcherOption {
	return func(w *Watcher) {
		w.overrides = overrides
	}
}

// WithInitial sets the configuration reported as Previous by the first reload.
func WithInitial(cfg *Config) WatcherOption {
	return func(w *Watcher) {
		w.current = cfg
	}
}

// WithWatcherLogger sets the logger for reload failures.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = l
	}
}

// NewWatcher creates a watcher for configPath. A nil loader gets a fresh one.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, errors.New("config path is required for watching")
	}
	if loader == nil {
		loader = NewLoader()
	}

	fswatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fswatcher,
		loader:     loader,
		configPath: configPath,
		reloads:    signal.NewSlot[*Reload](signal.WithSlotName("config.reload")),
		debounce:   500 * time.Millisecond,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Global().With("component", "config.watcher")
	}
	return w, nil
}

// Watch monitors the file until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(w.configPath); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", w.configPath, err)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WarnContext(ctx, "config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := w.loader.Load(w.configPath, w.overrides)
	if err != nil {
		w.log.WarnContext(ctx, "failed to reload config", "path", w.configPath, "error", err)
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = cfg
	w.mu.Unlock()

	if err := w.reloads.SendContext(ctx, &Reload{Config: cfg, Previous: prev}); err != nil {
		w.log.WarnContext(ctx, "config reload handler failed", "error", err)
	}
}

// OnChange connects fn to the reload slot. Handlers run synchronously on the
// watcher goroutine in connection order. Disconnect the returned callback, or
// bind it to a context with signal.WithTracking, to stop receiving reloads.
func (w *Watcher) OnChange(fn func(*Reload), opts ...signal.CallbackOption) *signal.Callback {
	opts = append([]signal.CallbackOption{signal.AsTransparent(), signal.WithName("config.on_change")}, opts...)
	cb := signal.NewCallbackFunc(fn, opts...)
	cb.Connect(w.reloads)
	return cb
}

// Reloads returns the slot on which reloads are broadcast.
func (w *Watcher) Reloads() *signal.Slot[*Reload] {
	return w.reloads
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops the watcher and releases resources. It is safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// ConfigPath returns the path being watched.
func (w *Watcher) ConfigPath() string {
	return w.configPath
}

// HotReloadableConfig contains configuration values that can be applied
// without restarting the host.
type HotReloadableConfig struct {
	LogLevel      string
	LogEvents     bool
	TraceEvents   bool
	EventLogRate  float64
	EventLogBurst int
	DemoInterval  time.Duration
}

// ExtractHotReloadable extracts hot-reloadable values from Config.
func ExtractHotReloadable(cfg *Config) HotReloadableConfig {
	return HotReloadableConfig{
		LogLevel:      cfg.Log.Level,
		LogEvents:     cfg.Dispatch.LogEvents,
		TraceEvents:   cfg.Dispatch.TraceEvents,
		EventLogRate:  cfg.Dispatch.EventLogRate,
		EventLogBurst: cfg.Dispatch.EventLogBurst,
		DemoInterval:  cfg.Demo.Interval,
	}
}

// Changed checks if hot-reloadable configuration has changed.
func (h HotReloadableConfig) Changed(other HotReloadableConfig) bool {
	return h != other
}
