// Package logger provides a unified, structured logging interface with support
// for multiple underlying logging engines (Zap, slog, zerolog, logrus). The
// reliability core emits all of its structured records through this interface;
// it never writes to files or streams directly.
package logger

import (
	"context"
	"time"
)

// Level represents the severity of a log record.
type Level int

// Engine represents a supported underlying logging implementation.
type Engine string

const (
	// ZapEngine selects the go.uber.org/zap logger.
	ZapEngine Engine = "zap"
	// SlogEngine selects the stdlib log/slog logger.
	SlogEngine Engine = "slog"
	// ZerologEngine selects the github.com/rs/zerolog logger.
	ZerologEngine Engine = "zerolog"
	// LogrusEngine selects the github.com/sirupsen/logrus logger.
	LogrusEngine Engine = "logrus"

	// DebugLevel is the most verbose level, typically used for development.
	DebugLevel Level = iota - 4
	// InfoLevel is the default logging level for general operational information.
	InfoLevel
	// WarnLevel indicates unexpected or unusual events that are not errors.
	WarnLevel
	// ErrorLevel indicates serious errors that require attention.
	ErrorLevel
)

// Attr represents a key-value pair for structured logging.
type Attr struct {
	Key   string
	Value any
}

// Logger defines a unified interface for structured logging across multiple
// engines. It supports context-aware logging and attribute-based records.
type Logger interface {
	// Debug logs a message at DebugLevel with key-value arguments.
	Debug(msg string, args ...any)
	// Info logs a message at InfoLevel with key-value arguments.
	Info(msg string, args ...any)
	// Warn logs a message at WarnLevel with key-value arguments.
	Warn(msg string, args ...any)
	// Error logs a message at ErrorLevel with key-value arguments.
	Error(msg string, args ...any)

	// Ctx returns a new logger instance enriched with the test case id from
	// the provided context, if present.
	Ctx(ctx context.Context) Logger
	// With returns a new logger instance with the given key-value pairs added
	// to all subsequent logs.
	With(args ...any) Logger

	// Log logs a message at the specified level with structured attributes.
	Log(level Level, msg string, attrs ...Attr)
	// LogAttrs logs a message at the specified level with structured
	// attributes and context enrichment.
	LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr)
}

// InitLogger initializes a logger instance for the given engine, component
// name, and environment. It applies optional configuration via functional
// options. Returns an error only for engines that require explicit
// initialization (e.g., Zap).
func InitLogger(engine Engine, component, env string, opts ...Option) (Logger, error) {
	switch engine {
	case ZapEngine:
		return NewZapAdapter(component, env, opts...)
	case SlogEngine:
		return NewSlogAdapter(component, env, opts...), nil
	case ZerologEngine:
		return NewZerologAdapter(component, env, opts...), nil
	case LogrusEngine:
		return NewLogrusAdapter(component, env, opts...), nil
	default:
		return NewZerologAdapter(component, env, opts...), nil
	}
}

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// String creates a string attribute for structured logging.
func String(key string, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Int creates an int attribute for structured logging.
func Int(key string, value int) Attr {
	return Attr{Key: key, Value: value}
}

// Int64 creates an int64 attribute for structured logging.
func Int64(key string, value int64) Attr {
	return Attr{Key: key, Value: value}
}

// Bool creates a bool attribute for structured logging.
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: value}
}

// Time creates a time.Time attribute for structured logging.
func Time(key string, value time.Time) Attr {
	return Attr{Key: key, Value: value}
}

// Duration creates a time.Duration attribute for structured logging.
func Duration(key string, value time.Duration) Attr {
	return Attr{Key: key, Value: value}
}

// Any creates an attribute with an arbitrary value for structured logging.
func Any(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Slice creates an attribute with a slice of any type for structured logging.
func Slice[T any](key string, value []T) Attr {
	return Attr{Key: key, Value: value}
}
