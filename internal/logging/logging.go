package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Uint64(key string, value uint64) Field          { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field        { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field                { return Field{Key: key, Value: value} }

// Err records err under the "error" key. A nil error records "".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is the structured logger used across the simulator. It is small
// enough to back with slog or a test double.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls handler selection.
type Config struct {
	Level     string    // debug, info, warn, error
	Format    string    // json or text
	AddSource bool      // include source locations
	Output    io.Writer // defaults to os.Stderr
}

// New builds a slog-backed Logger.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &slogger{l: slog.New(handler)}
}

// NewFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SOURCE. Logs go to stderr
// so that command output on stdout stays machine-readable.
func NewFromEnv() Logger {
	addSource, _ := strconv.ParseBool(os.Getenv("LOG_SOURCE"))
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		AddSource: addSource,
	})
}

// ParseLevel maps a level name to slog. Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Noop returns a logger that drops everything.
func Noop() Logger { return noopLogger{} }

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return &slogger{l: s.l.With(args...)}
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelDebug, msg, fields)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelInfo, msg, fields)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelWarn, msg, fields)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelError, msg, fields)
}

func (s *slogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}

type noopLogger struct{}

func (noopLogger) With(...Field) Logger                    { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

// Context helpers. Request IDs tag RPCs; run IDs tag one simulation run.

type ctxKey int

const (
	requestIDKey ctxKey = iota
	runIDKey
	loggerKey
)

func fromContext[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func newID() string { return uuid.NewString() }

// EnsureRequestID returns ctx with a request ID, generating one if absent.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := newID()
	return ContextWithRequestID(ctx, id), id
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, requestIDKey)
	return id
}

// WithRequestLogger ensures a request ID and returns a logger tagged with it.
func WithRequestLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	ctx, id := EnsureRequestID(ctx)
	return ctx, base.With(String("request_id", id))
}

// WithRunLogger tags a simulation run. An existing run ID on ctx is reused.
func WithRunLogger(ctx context.Context, base Logger, scenario string) (context.Context, Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	if base == nil {
		base = Noop()
	}
	id := RunIDFromContext(ctx)
	if id == "" {
		id = newID()
		ctx = context.WithValue(ctx, runIDKey, id)
	}
	return ctx, base.With(String("run_id", id), String("scenario", scenario))
}

func RunIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, runIDKey)
	return id
}

// ContextWithLogger stores l on ctx. A nil l stores the noop logger.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	if l == nil {
		l = Noop()
	}
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext returns the logger stored on ctx, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	l, _ := fromContext[Logger](ctx, loggerKey)
	return l
}
