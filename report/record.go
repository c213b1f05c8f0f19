package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/qa-go/qaf/faults"
)

// Decision tells the caller how the suite should proceed after a fault.
// It is a pure function of the severity tier and never depends on retry
// history.
type Decision int

const (
	// ContinueNormally: the suite proceeds; the record is the only trace.
	ContinueNormally Decision = iota
	// ContinueWithLogging: the suite proceeds; the record joins the running
	// defect log.
	ContinueWithLogging
	// HaltExecution: the suite stops immediately with this record as the
	// final result.
	HaltExecution
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case HaltExecution:
		return "halt_execution"
	case ContinueWithLogging:
		return "continue_with_logging"
	case ContinueNormally:
		return "continue_normally"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so serialized records carry
// readable decisions.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DecisionFor maps a severity tier to its continuation decision.
func DecisionFor(sev faults.Severity) Decision {
	switch sev {
	case faults.Critical:
		return HaltExecution
	case faults.Major:
		return ContinueWithLogging
	default:
		return ContinueNormally
	}
}

// FailureRecord is the immutable structured outcome of handling one fault.
// A retry that fails again produces a new record; existing records are never
// mutated.
type FailureRecord struct {
	ID           string          `json:"id"`
	Severity     faults.Severity `json:"-"`
	FaultKind    string          `json:"fault_kind"`
	Message      string          `json:"message"`
	Timestamp    time.Time       `json:"timestamp"`
	Context      faults.Context  `json:"-"`
	ArtifactRefs []string        `json:"artifact_refs,omitempty"`
	Decision     Decision        `json:"decision"`
}

// JSON renders the record for sinks. The opaque driver handle is omitted
// from the serialized context.
func (r FailureRecord) JSON() ([]byte, error) {
	cleaned := make(map[string]any, len(r.Context))
	for k, v := range r.Context {
		if k == faults.KeyDriver {
			continue
		}
		cleaned[k] = v
	}

	type alias FailureRecord
	return json.Marshal(struct {
		alias
		Severity string         `json:"severity"`
		Context  map[string]any `json:"context,omitempty"`
	}{alias(r), r.Severity.String(), cleaned})
}

// faultKind derives a stable type tag from the fault's concrete type.
func faultKind(fault error) string {
	if fault == nil {
		return "unknown"
	}
	kind := fmt.Sprintf("%T", fault)
	return strings.TrimPrefix(kind, "*")
}
