package logger

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a private type used to avoid key collisions in context.WithValue.
type contextKey struct{}

var testCaseIDKey = contextKey{}

// SetTestCaseID stores the given test case id in the context. Every log
// record emitted under this context is correlated with that test case.
func SetTestCaseID(ctx context.Context, testCaseID string) context.Context {
	return context.WithValue(ctx, testCaseIDKey, testCaseID)
}

// GetTestCaseID retrieves the test case id from the context.
// Returns an empty string if none is present.
func GetTestCaseID(ctx context.Context) string {
	if id, ok := ctx.Value(testCaseIDKey).(string); ok {
		return id
	}
	return ""
}

// GenerateTestCaseID creates a new globally unique identifier (UUID v4) for
// use as a synthetic test case id when the runner does not supply one.
func GenerateTestCaseID() string {
	return uuid.New().String()
}
