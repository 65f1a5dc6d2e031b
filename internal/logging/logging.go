package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Field names shared by every component logger.
const (
	KeyComponent  = "component"
	KeyRequestID  = "requestId"
	KeyCommand    = "command"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
	KeyKind       = "kind"
	KeyHandle     = "handle"
	KeyPID        = "pid"
)

type contextKey struct{}

// sink is the process-wide destination. Component loggers are created at
// package init, long before the config is read, so they hold the sink and
// resolve the real handler per record.
type sink struct {
	current atomic.Pointer[slog.Handler]
}

func (s *sink) swap(h slog.Handler) { s.current.Store(&h) }

func (s *sink) load() slog.Handler { return *s.current.Load() }

// derive is one WithAttrs or WithGroup step, replayed on whichever
// handler the sink holds at the time of the call.
type derive func(slog.Handler) slog.Handler

type deferred struct {
	sink  *sink
	steps []derive
}

func (d *deferred) resolve() slog.Handler {
	h := d.sink.load()
	for _, step := range d.steps {
		h = step(h)
	}
	return h
}

func (d *deferred) then(step derive) *deferred {
	steps := make([]derive, len(d.steps), len(d.steps)+1)
	copy(steps, d.steps)
	return &deferred{sink: d.sink, steps: append(steps, step)}
}

func (d *deferred) Enabled(ctx context.Context, level slog.Level) bool {
	return d.sink.load().Enabled(ctx, level)
}

func (d *deferred) Handle(ctx context.Context, r slog.Record) error {
	return d.resolve().Handle(ctx, r)
}

func (d *deferred) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return d
	}
	return d.then(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (d *deferred) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	return d.then(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

// Stdout carries the native-messaging stream; logs never go there.
var (
	root          = newSink(newHandler("text", "info", os.Stderr))
	defaultLogger = slog.New(&deferred{sink: root})
)

func newSink(h slog.Handler) *sink {
	s := &sink{}
	s.swap(h)
	return s
}

func init() {
	slog.SetDefault(defaultLogger)
}

// Init points every logger, including ones created earlier, at a handler
// built from format ("json" or "text"), level and output (nil means stderr).
// It may be called repeatedly with different formats.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	root.swap(newHandler(format, level, output))
	slog.SetDefault(defaultLogger)
}

func newHandler(format, level string, output io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(output, opts)
	}
	return slog.NewTextHandler(output, opts)
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// WithRequest tags logger with the request id and command being served.
func WithRequest(logger *slog.Logger, requestID, command string) *slog.Logger {
	return logger.With(
		slog.String(KeyRequestID, requestID),
		slog.String(KeyCommand, command),
	)
}

func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by NewContext, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// ValidLevel reports whether s names a level understood by Init.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
