package logger

import (
	"context"
	"log/slog"
)

// newSlogLogger creates a configured log/slog.Logger instance.
func newSlogLogger(component, env string, cfg *GlobalConfig) *slog.Logger {
	level := toSlogLevel(cfg.Level)
	handler := slog.NewJSONHandler(cfg.GetWriter(), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(
		slog.String("component", component),
		slog.String("env", env),
	)
}

// SlogAdapter implements the Logger interface using Go's standard log/slog package.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new logger instance using log/slog with JSON encoding.
// It is pre-configured with component name and environment fields.
// File rotation and output options can be customized via functional options.
func NewSlogAdapter(component, env string, opts ...Option) *SlogAdapter {
	cfg := defaultConfigs()
	for _, opt := range opts {
		opt(cfg)
	}
	return &SlogAdapter{
		logger: newSlogLogger(component, env, cfg),
	}
}

// Debug logs a message at DebugLevel with the given key-value pairs.
func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }

// Info logs a message at InfoLevel with the given key-value pairs.
func (a *SlogAdapter) Info(msg string, args ...any) { a.logger.Info(msg, args...) }

// Warn logs a message at WarnLevel with the given key-value pairs.
func (a *SlogAdapter) Warn(msg string, args ...any) { a.logger.Warn(msg, args...) }

// Error logs a message at ErrorLevel with the given key-value pairs.
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// Ctx returns a new logger instance enriched with the test case id from the
// context, if present. If none is found, returns the original logger.
func (a *SlogAdapter) Ctx(ctx context.Context) Logger {
	testCaseID := GetTestCaseID(ctx)
	if testCaseID == "" {
		return a
	}
	return &SlogAdapter{logger: a.logger.With("test_case_id", testCaseID)}
}

// With returns a new logger instance with the given key-value pairs added to all subsequent logs.
func (a *SlogAdapter) With(args ...any) Logger {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// Log logs a message at the specified level with structured attributes.
// It checks if the level is enabled before constructing the log record to
// avoid unnecessary allocations.
func (a *SlogAdapter) Log(level Level, msg string, attrs ...Attr) {
	slogLevel := toSlogLevel(level)
	if !a.logger.Enabled(context.Background(), slogLevel) {
		return
	}
	a.logger.Log(context.Background(), slogLevel, msg, toSlogAttrs(attrs)...)
}

// LogAttrs logs a message at the specified level with structured attributes
// and context enrichment. It automatically injects the test case id from the
// context if available.
func (a *SlogAdapter) LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr) {
	a.Ctx(ctx).Log(level, msg, attrs...)
}

// toSlogLevel converts a logger.Level to the corresponding slog.Level.
// Unknown levels default to LevelInfo.
func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// toSlogAttrs converts a slice of Attr to slog arguments (key-value pairs).
func toSlogAttrs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = slog.Any(attr.Key, attr.Value)
	}
	return args
}
