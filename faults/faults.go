// Package faults classifies execution faults into severity tiers used by the
// reporting and recovery machinery. Classification is deterministic: the same
// fault and context always yield the same severity.
package faults

import (
	"errors"
	"strings"
)

// Severity represents the tier of a handled fault.
type Severity int

const (
	// Minor marks cosmetic, non-blocking faults. The suite continues silently
	// except for a log line.
	Minor Severity = iota
	// Major marks functional but recoverable faults: timeouts, validation
	// errors, connectivity issues.
	Major
	// Critical marks security, data-integrity or process-fatal faults. The
	// suite halts immediately.
	Critical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case Major:
		return "major"
	case Minor:
		return "minor"
	default:
		return "unknown"
	}
}

// Surface identifies the category of action being tested. It selects the
// recovery strategy applied after a fault.
type Surface string

const (
	// SurfaceWeb covers browser-driven checks.
	SurfaceWeb Surface = "web"
	// SurfaceMobile covers device/app-driven checks.
	SurfaceMobile Surface = "mobile"
	// SurfaceAPI covers HTTP/API checks.
	SurfaceAPI Surface = "api"
	// SurfaceDatabase covers data setup and verification.
	SurfaceDatabase Surface = "database"
)

// Context carries execution metadata alongside a fault: at minimum the test
// case id, optionally the execution surface and an opaque driver handle.
// The core never inspects the driver beyond capability assertions.
type Context map[string]any

// Well-known context keys.
const (
	KeyTestCaseID = "test_case_id"
	KeySurface    = "surface"
	KeyDriver     = "driver"
)

// TestCaseID returns the test case id from the context, or "" if absent.
func (c Context) TestCaseID() string {
	id, _ := c[KeyTestCaseID].(string)
	return id
}

// Surface returns the execution surface from the context, or "" if absent.
func (c Context) Surface() Surface {
	switch v := c[KeySurface].(type) {
	case Surface:
		return v
	case string:
		return Surface(v)
	default:
		return ""
	}
}

// Driver returns the opaque driver handle from the context, or nil.
func (c Context) Driver() any {
	return c[KeyDriver]
}

// Keyword rule sets, evaluated Critical -> Major, first match wins.
// Matching is case-insensitive substring membership over the fault message.
var (
	criticalKeywords = []string{
		"security",
		"authentication",
		"authorization",
		"payment",
		"database connection",
		"system crash",
		"memory error",
		"permission denied",
		"access denied",
	}

	majorKeywords = []string{
		"timeout",
		"connection",
		"not found",
		"invalid response",
		"assertion",
		"validation",
		"element not found",
	}
)

// Classify maps a fault and its execution context to a severity tier.
// The fault message and concrete type are inspected against ordered rule
// sets; anything that matches neither tier is Minor. Classify has no side
// effects.
func Classify(fault error, fctx Context) Severity {
	if fault == nil {
		return Minor
	}

	var c *classified
	if errors.As(fault, &c) {
		return c.severity
	}

	msg := strings.ToLower(fault.Error())

	if matchesAny(msg, criticalKeywords) || isCriticalType(fault) {
		return Critical
	}
	if matchesAny(msg, majorKeywords) || isMajorType(fault) {
		return Major
	}
	return Minor
}

func matchesAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
