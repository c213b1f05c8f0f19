package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// newZerologLogger creates a configured rs/zerolog.Logger instance.
func newZerologLogger(component, env string, cfg *GlobalConfig) zerolog.Logger {
	level := toZerologLevel(cfg.Level)
	return zerolog.New(cfg.GetWriter()).Level(level).With().
		Timestamp().
		Str("component", component).
		Str("env", env).
		Logger()
}

// ZerologAdapter implements the Logger interface using github.com/rs/zerolog
// as the underlying engine. It supports structured logging, test-case-id
// context propagation, and log rotation.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new logger instance using zerolog.
// It is pre-configured with timestamp, component name, and environment fields.
// File rotation and output options can be customized via functional options.
func NewZerologAdapter(component, env string, opts ...Option) *ZerologAdapter {
	cfg := defaultConfigs()
	for _, opt := range opts {
		opt(cfg)
	}
	return &ZerologAdapter{
		logger: newZerologLogger(component, env, cfg),
	}
}

// Debug logs a message at DebugLevel with the given key-value pairs.
func (a *ZerologAdapter) Debug(msg string, args ...any) { a.logger.Debug().Fields(args).Msg(msg) }

// Info logs a message at InfoLevel with the given key-value pairs.
func (a *ZerologAdapter) Info(msg string, args ...any) { a.logger.Info().Fields(args).Msg(msg) }

// Warn logs a message at WarnLevel with the given key-value pairs.
func (a *ZerologAdapter) Warn(msg string, args ...any) { a.logger.Warn().Fields(args).Msg(msg) }

// Error logs a message at ErrorLevel with the given key-value pairs.
func (a *ZerologAdapter) Error(msg string, args ...any) { a.logger.Error().Fields(args).Msg(msg) }

// Ctx returns a new logger instance enriched with the test case id from the
// context, if present. If none is found, returns the original logger.
func (a *ZerologAdapter) Ctx(ctx context.Context) Logger {
	testCaseID := GetTestCaseID(ctx)
	if testCaseID == "" {
		return a
	}
	return &ZerologAdapter{logger: a.logger.With().Str("test_case_id", testCaseID).Logger()}
}

// With returns a new logger instance with the given key-value pairs added to all subsequent logs.
func (a *ZerologAdapter) With(args ...any) Logger {
	return &ZerologAdapter{logger: a.logger.With().Fields(args).Logger()}
}

// Log logs a message at the specified level with structured attributes.
// If the level is below the configured minimum, the log is silently dropped.
func (a *ZerologAdapter) Log(level Level, msg string, attrs ...Attr) {
	zlLevel := toZerologLevel(level)
	if zlLevel == zerolog.Disabled {
		return
	}

	event := a.logger.WithLevel(zlLevel)
	for _, attr := range attrs {
		event.Any(attr.Key, attr.Value)
	}
	event.Msg(msg)
}

// LogAttrs logs a message at the specified level with structured attributes
// and context enrichment. It automatically injects the test case id from the
// context if available.
func (a *ZerologAdapter) LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr) {
	a.Ctx(ctx).Log(level, msg, attrs...)
}

// toZerologLevel converts a logger.Level to the corresponding zerolog.Level.
// Unknown levels default to InfoLevel.
func toZerologLevel(l Level) zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
