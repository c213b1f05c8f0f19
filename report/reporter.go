// Package report turns handled faults into immutable failure records,
// captures artifacts for UI surfaces and routes records to registered sinks.
// Handling a fault never produces a new error: the reporter is the terminal
// stage of the failure path.
package report

import (
	"context"
	"time"

	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/helpers"
	"github.com/qa-go/qaf/logger"
)

// ArtifactCapturer captures a diagnostic artifact (screenshot, page source,
// device dump) from the driver in the fault context and returns a reference
// to it.
type ArtifactCapturer interface {
	Capture(ctx context.Context, fctx faults.Context) (string, error)
}

// Sink receives finished failure records. Emit errors are logged and
// swallowed by the reporter.
type Sink interface {
	Emit(ctx context.Context, rec FailureRecord) error
}

type sinkEntry struct {
	sink       Sink
	severities map[faults.Severity]bool
}

// Reporter builds failure records from faults and distributes them. It is
// safe for use from a single goroutine per test execution; sinks must be
// registered before handling starts.
type Reporter struct {
	component string
	log       logger.Logger
	capturer  ArtifactCapturer
	sinks     []sinkEntry
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithComponent overrides the component label used in record ids.
func WithComponent(component string) Option {
	return func(r *Reporter) {
		r.component = component
	}
}

// WithCapturer installs an artifact capturer invoked for web and mobile
// faults that carry a driver.
func WithCapturer(c ArtifactCapturer) Option {
	return func(r *Reporter) {
		r.capturer = c
	}
}

// NewReporter creates a reporter that logs through log.
func NewReporter(log logger.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		component: "qaf",
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddSink registers a sink for the given severities. A sink registered with
// no severities receives every record.
func (r *Reporter) AddSink(s Sink, severities ...faults.Severity) {
	entry := sinkEntry{sink: s}
	if len(severities) > 0 {
		entry.severities = make(map[faults.Severity]bool, len(severities))
		for _, sev := range severities {
			entry.severities[sev] = true
		}
	}
	r.sinks = append(r.sinks, entry)
}

// Handle classifies the fault, builds its failure record, logs it at the
// level matching its severity and routes it to matching sinks. Handle never
// returns an error and never panics: sink and capture failures are logged
// and swallowed.
func (r *Reporter) Handle(ctx context.Context, fault error, fctx faults.Context) FailureRecord {
	severity := faults.Classify(fault, fctx)
	now := time.Now().UTC()

	msg := ""
	if fault != nil {
		msg = fault.Error()
	}

	rec := FailureRecord{
		ID:        helpers.FailureID(r.component, fctx.TestCaseID(), now),
		Severity:  severity,
		FaultKind: faultKind(fault),
		Message:   msg,
		Timestamp: now,
		Context:   fctx,
		Decision:  DecisionFor(severity),
	}

	if ref := r.capture(ctx, fctx); ref != "" {
		rec.ArtifactRefs = append(rec.ArtifactRefs, ref)
	}

	r.logRecord(ctx, rec)
	r.emit(ctx, rec)
	return rec
}

// capture invokes the artifact capturer for UI surfaces carrying a driver.
// Any error or panic from the capturer is downgraded to a log line.
func (r *Reporter) capture(ctx context.Context, fctx faults.Context) (ref string) {
	if r.capturer == nil {
		return ""
	}
	surface := fctx.Surface()
	if surface != faults.SurfaceWeb && surface != faults.SurfaceMobile {
		return ""
	}
	if fctx.Driver() == nil {
		return ""
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Ctx(ctx).Info("artifact capture panicked",
				"surface", string(surface), "panic", p)
			ref = ""
		}
	}()

	ref, err := r.capturer.Capture(ctx, fctx)
	if err != nil {
		r.log.Ctx(ctx).Info("artifact capture failed",
			"surface", string(surface), "error", err.Error())
		return ""
	}
	return ref
}

func (r *Reporter) logRecord(ctx context.Context, rec FailureRecord) {
	attrs := []logger.Attr{
		logger.String("failure_id", rec.ID),
		logger.String("severity", rec.Severity.String()),
		logger.String("fault_kind", rec.FaultKind),
		logger.String("decision", rec.Decision.String()),
		logger.String("test_case_id", rec.Context.TestCaseID()),
		logger.String("surface", string(rec.Context.Surface())),
		logger.Int("artifacts", len(rec.ArtifactRefs)),
	}

	level := logger.InfoLevel
	switch rec.Severity {
	case faults.Critical:
		level = logger.ErrorLevel
	case faults.Major:
		level = logger.WarnLevel
	}

	r.log.LogAttrs(ctx, level, rec.Message, attrs...)
}

// emit routes the record to every sink whose severity filter matches. A
// failing or panicking sink never disturbs the other sinks or the caller.
func (r *Reporter) emit(ctx context.Context, rec FailureRecord) {
	for _, entry := range r.sinks {
		if entry.severities != nil && !entry.severities[rec.Severity] {
			continue
		}
		r.safeEmit(ctx, entry.sink, rec)
	}
}

func (r *Reporter) safeEmit(ctx context.Context, s Sink, rec FailureRecord) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Ctx(ctx).Warn("failure sink panicked",
				"failure_id", rec.ID, "panic", p)
		}
	}()

	if err := s.Emit(ctx, rec); err != nil {
		r.log.Ctx(ctx).Warn("failure sink emit failed",
			"failure_id", rec.ID, "error", err.Error())
	}
}
