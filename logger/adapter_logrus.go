package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

func newLogrusLogger(component, env string, cfg *GlobalConfig) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(cfg.GetWriter())
	l.SetLevel(toLogrusLevel(cfg.Level))

	return l.WithFields(logrus.Fields{
		"component": component,
		"env":       env,
	})
}

// LogrusAdapter implements the Logger interface using github.com/sirupsen/logrus
// as the underlying engine.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter creates a new logger instance using logrus.
// It is pre-configured with component name and environment fields.
// File rotation and output options can be customized via functional options.
func NewLogrusAdapter(component, env string, opts ...Option) *LogrusAdapter {
	cfg := defaultConfigs()
	for _, opt := range opts {
		opt(cfg)
	}
	return &LogrusAdapter{
		entry: newLogrusLogger(component, env, cfg),
	}
}

// Debug logs a message at DebugLevel with the given key-value pairs.
func (a *LogrusAdapter) Debug(msg string, args ...any) { a.With(args...).(*LogrusAdapter).entry.Debug(msg) }

// Info logs a message at InfoLevel with the given key-value pairs.
func (a *LogrusAdapter) Info(msg string, args ...any) { a.With(args...).(*LogrusAdapter).entry.Info(msg) }

// Warn logs a message at WarnLevel with the given key-value pairs.
func (a *LogrusAdapter) Warn(msg string, args ...any) { a.With(args...).(*LogrusAdapter).entry.Warn(msg) }

// Error logs a message at ErrorLevel with the given key-value pairs.
func (a *LogrusAdapter) Error(msg string, args ...any) { a.With(args...).(*LogrusAdapter).entry.Error(msg) }

// Ctx returns a new logger instance enriched with the test case id from the
// context, if present. If none is found, returns the original logger.
func (a *LogrusAdapter) Ctx(ctx context.Context) Logger {
	testCaseID := GetTestCaseID(ctx)
	if testCaseID == "" {
		return a
	}
	return &LogrusAdapter{
		entry: a.entry.WithField("test_case_id", testCaseID),
	}
}

// With returns a new logger instance with the given key-value pairs added to
// all subsequent logs. Only string keys are supported; non-string keys are
// silently ignored. If the number of arguments is odd, the last key is ignored.
func (a *LogrusAdapter) With(args ...any) Logger {
	if len(args) == 0 {
		return a
	}

	fields := make(logrus.Fields)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(args) {
			fields[key] = args[i+1]
		}
	}

	return &LogrusAdapter{
		entry: a.entry.WithFields(fields),
	}
}

// Log logs a message at the specified level with structured attributes.
func (a *LogrusAdapter) Log(level Level, msg string, attrs ...Attr) {
	fields := make(logrus.Fields)
	for _, attr := range attrs {
		fields[attr.Key] = attr.Value
	}

	a.entry.WithFields(fields).Log(toLogrusLevel(level), msg)
}

// LogAttrs logs a message at the specified level with structured attributes
// and context enrichment. It automatically injects the test case id from the
// context if available.
func (a *LogrusAdapter) LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr) {
	a.Ctx(ctx).Log(level, msg, attrs...)
}

// toLogrusLevel converts a logger.Level to the corresponding logrus.Level.
// Unknown levels default to InfoLevel.
func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
