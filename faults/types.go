package faults

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

// PostgreSQL error code classes. Only the class prefix matters here; exact
// code mapping lives with the transaction layer.
const (
	pgClassAuth         = "28" // invalid authorization specification
	pgClassResources    = "53" // insufficient resources
	pgClassSystem       = "58" // system error (external to PostgreSQL)
	pgClassConnection   = "08" // connection exception
	pgClassIntegrity    = "23" // integrity constraint violation
	pgCodeSerialization = "40001"
	pgCodeDeadlock      = "40P01"
	pgCodeStmtTimeout   = "57014"
	pgCodeLockTimeout   = "55P03"
)

// isCriticalType reports whether the fault's concrete type alone warrants the
// Critical tier: authorization and resource-exhaustion database errors, and
// fatal OS-level conditions.
func isCriticalType(fault error) bool {
	var pgErr *pq.Error
	if errors.As(fault, &pgErr) {
		code := string(pgErr.Code)
		switch {
		case strings.HasPrefix(code, pgClassAuth),
			strings.HasPrefix(code, pgClassResources),
			strings.HasPrefix(code, pgClassSystem):
			return true
		}
	}

	var errno syscall.Errno
	if errors.As(fault, &errno) {
		switch errno {
		case syscall.ENOMEM, syscall.EACCES, syscall.EPERM:
			return true
		}
	}

	return false
}

// isMajorType reports whether the fault's concrete type alone warrants the
// Major tier: timeouts, connectivity and transient database errors.
func isMajorType(fault error) bool {
	if errors.Is(fault, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(fault, &netErr) && netErr.Timeout() {
		return true
	}

	var errno syscall.Errno
	if errors.As(fault, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
			return true
		}
	}

	var pgErr *pq.Error
	if errors.As(fault, &pgErr) {
		code := string(pgErr.Code)
		switch code {
		case pgCodeSerialization, pgCodeDeadlock, pgCodeStmtTimeout, pgCodeLockTimeout:
			return true
		}
		switch {
		case strings.HasPrefix(code, pgClassConnection),
			strings.HasPrefix(code, pgClassIntegrity):
			return true
		}
	}

	return false
}
