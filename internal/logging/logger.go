// Package logging writes structured JSON records and mirrors them to the
// OpenTelemetry log pipeline. Records pick up the active span and any
// simulation fields stored on the context with With.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Service     string
	Environment string
	// Level overrides the environment default: debug in development, info
	// otherwise. Accepts debug, info, warn or error.
	Level  string
	Output io.Writer
}

var process atomic.Pointer[slog.Logger]

// Setup installs the process logger and makes it the slog default. The OTel
// bridge uses the global logger provider, so call it after telemetry.Init.
func Setup(opts Options) error {
	level, err := resolveLevel(opts.Environment, opts.Level)
	if err != nil {
		return err
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	bridge := otelslog.NewHandler(opts.Service, otelslog.WithLoggerProvider(global.GetLoggerProvider()))
	handler := fanout{
		slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}),
		gated{Handler: bridge, min: level},
	}

	l := slog.New(handler).With(
		slog.String("service", opts.Service),
		slog.String("environment", opts.Environment),
	)
	process.Store(l)
	slog.SetDefault(l)
	return nil
}

func resolveLevel(environment, name string) (slog.Level, error) {
	if name == "" {
		if environment == "development" {
			return slog.LevelDebug, nil
		}
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", name, err)
	}
	return level, nil
}

type fieldsKey struct{}

// With returns a context whose records carry args as extra fields, after any
// fields already on ctx.
func With(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	return context.WithValue(ctx, fieldsKey{}, append(slices.Clip(prev), args...))
}

// For is the process logger decorated with the span ids and fields on ctx.
func For(ctx context.Context) *slog.Logger {
	l := process.Load()
	if l == nil {
		l = slog.Default()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(
			slog.String("traceId", sc.TraceID().String()),
			slog.String("spanId", sc.SpanID().String()),
		)
	}
	if fields, _ := ctx.Value(fieldsKey{}).([]any); len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}

func Debug(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

func Info(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

func Warn(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

func Error(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	l := For(ctx)
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, msg, args...)
}

// gated drops records below min before they reach the collector.
type gated struct {
	slog.Handler
	min slog.Level
}

func (g gated) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= g.min && g.Handler.Enabled(ctx, level)
}

func (g gated) WithAttrs(attrs []slog.Attr) slog.Handler {
	return gated{Handler: g.Handler.WithAttrs(attrs), min: g.min}
}

func (g gated) WithGroup(name string) slog.Handler {
	return gated{Handler: g.Handler.WithGroup(name), min: g.min}
}

// fanout hands each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
