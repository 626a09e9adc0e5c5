// Package logger provides structured logging for sigslot hosts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Level represents logging levels.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level string. Unknown values map to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds logger configuration.
type Config struct {
	Level     Level
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", or file path
	AddSource bool
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithContext(ctx context.Context) context.Context

	SetLevel(level Level)
	GetLevel() Level

	// Close releases the output file, if the logger owns one.
	Close() error
}

// SlogLogger is a Logger implementation using log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

var (
	globalMu sync.RWMutex
	global   Logger = New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})
)

// New creates a Logger writing to cfg.Output.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Format: "json", Output: "stdout"}
	}
	writer, closer := getWriter(cfg.Output)
	l := NewWithWriter(cfg, writer)
	l.closer = closer
	return l
}

// NewWithWriter creates a logger writing to w. The logger does not close w.
func NewWithWriter(cfg *Config, w io.Writer) *SlogLogger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Format: "json"}
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(slogLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:       levelVar,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &SlogLogger{
		logger: slog.New(handler),
		level:  levelVar,
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return NewWithWriter(&Config{Level: ErrorLevel}, io.Discard)
}

// getWriter resolves an output specification. The closer is nil for the
// standard streams.
func getWriter(output string) (io.Writer, io.Closer) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stderr, nil
		}
		return f, f
	}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(l slog.Level) Level {
	switch {
	case l <= slog.LevelDebug:
		return DebugLevel
	case l <= slog.LevelInfo:
		return InfoLevel
	case l <= slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.MessageKey {
		return slog.Attr{Key: "message", Value: a.Value}
	}
	return a
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// DebugContext logs at debug level, adding the trace and span IDs of ctx.
func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, appendTraceContextFields(ctx, args...)...)
}

// InfoContext logs at info level, adding the trace and span IDs of ctx.
func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, appendTraceContextFields(ctx, args...)...)
}

// WarnContext logs at warn level, adding the trace and span IDs of ctx.
func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, appendTraceContextFields(ctx, args...)...)
}

// ErrorContext logs at error level, adding the trace and span IDs of ctx.
func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, appendTraceContextFields(ctx, args...)...)
}

// With returns a child logger sharing the level of l.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(args...),
		level:  l.level,
	}
}

// WithContext returns a context carrying l.
func (l *SlogLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// SetLevel changes the level of l and of every logger derived from it.
func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(slogLevel(level))
}

// GetLevel returns the current level.
func (l *SlogLogger) GetLevel() Level {
	return fromSlogLevel(l.level.Level())
}

// Close closes the output file, if any.
func (l *SlogLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

type loggerKey struct{}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// Global returns the global logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the global logger. nil is ignored.
func SetGlobal(l Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

// SetLevel sets the level of the global logger.
func SetLevel(level Level) {
	Global().SetLevel(level)
}

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

func appendTraceContextFields(ctx context.Context, args ...any) []any {
	if ctx == nil {
		return args
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return args
	}
	return append(args,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}
