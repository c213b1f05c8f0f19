package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/logger"
	"github.com/qa-go/qaf/report"
)

type memorySink struct {
	records []report.FailureRecord
	err     error
	panics  bool
}

func (s *memorySink) Emit(_ context.Context, rec report.FailureRecord) error {
	if s.panics {
		panic("sink down")
	}
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type stubCapturer struct {
	ref    string
	err    error
	panics bool
	calls  int
}

func (c *stubCapturer) Capture(context.Context, faults.Context) (string, error) {
	c.calls++
	if c.panics {
		panic("driver gone")
	}
	return c.ref, c.err
}

func testLogger(t *testing.T) (logger.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return logger.NewZerologAdapter("reliability", "test", logger.WithWriter(&buf)), &buf
}

func TestHandle_BuildsRecord(t *testing.T) {
	log, _ := testLogger(t)
	r := report.NewReporter(log)

	fctx := faults.Context{
		faults.KeyTestCaseID: "T42",
		faults.KeySurface:    faults.SurfaceAPI,
	}
	rec := r.Handle(context.Background(), errors.New("request timeout after 30s"), fctx)

	assert.Equal(t, faults.Major, rec.Severity)
	assert.Equal(t, report.ContinueWithLogging, rec.Decision)
	assert.Equal(t, "request timeout after 30s", rec.Message)
	assert.Equal(t, "errors.errorString", rec.FaultKind)
	assert.Contains(t, rec.ID, "T42")
	assert.False(t, rec.Timestamp.IsZero())
	assert.Empty(t, rec.ArtifactRefs)
}

func TestHandle_DecisionPerSeverity(t *testing.T) {
	log, _ := testLogger(t)
	r := report.NewReporter(log)
	ctx := context.Background()
	fctx := faults.Context{faults.KeyTestCaseID: "T1"}

	cases := []struct {
		fault    error
		decision report.Decision
	}{
		{errors.New("authentication rejected"), report.HaltExecution},
		{errors.New("element not found: #submit"), report.ContinueWithLogging},
		{errors.New("tooltip text mismatch"), report.ContinueNormally},
	}
	for _, tc := range cases {
		rec := r.Handle(ctx, tc.fault, fctx)
		assert.Equal(t, tc.decision, rec.Decision, tc.fault.Error())
	}
}

func TestHandle_SeverityFilteredSinks(t *testing.T) {
	log, _ := testLogger(t)
	r := report.NewReporter(log)

	critical := &memorySink{}
	major := &memorySink{}
	all := &memorySink{}
	r.AddSink(critical, faults.Critical)
	r.AddSink(major, faults.Major)
	r.AddSink(all)

	ctx := context.Background()
	fctx := faults.Context{faults.KeyTestCaseID: "T7"}
	r.Handle(ctx, errors.New("payment gateway refused"), fctx)
	r.Handle(ctx, errors.New("validation failed on email"), fctx)
	r.Handle(ctx, errors.New("banner misaligned"), fctx)

	assert.Len(t, critical.records, 1)
	assert.Len(t, major.records, 1)
	assert.Len(t, all.records, 3)
	assert.Equal(t, faults.Critical, critical.records[0].Severity)
	assert.Equal(t, faults.Major, major.records[0].Severity)
}

func TestHandle_SinkFailureIsSwallowed(t *testing.T) {
	log, buf := testLogger(t)
	r := report.NewReporter(log)

	broken := &memorySink{err: errors.New("redis unavailable")}
	healthy := &memorySink{}
	r.AddSink(broken)
	r.AddSink(healthy)

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), errors.New("whatever"), faults.Context{})
	})
	assert.Len(t, healthy.records, 1)
	assert.Contains(t, buf.String(), "failure sink emit failed")
}

func TestHandle_SinkPanicIsSwallowed(t *testing.T) {
	log, buf := testLogger(t)
	r := report.NewReporter(log)
	r.AddSink(&memorySink{panics: true})

	assert.NotPanics(t, func() {
		r.Handle(context.Background(), errors.New("whatever"), faults.Context{})
	})
	assert.Contains(t, buf.String(), "failure sink panicked")
}

func TestHandle_CapturesArtifactForWebWithDriver(t *testing.T) {
	log, _ := testLogger(t)
	cap := &stubCapturer{ref: "artifacts/T9/shot-001.png"}
	r := report.NewReporter(log, report.WithCapturer(cap))

	fctx := faults.Context{
		faults.KeyTestCaseID: "T9",
		faults.KeySurface:    faults.SurfaceWeb,
		faults.KeyDriver:     struct{}{},
	}
	rec := r.Handle(context.Background(), errors.New("element not found"), fctx)

	assert.Equal(t, 1, cap.calls)
	assert.Equal(t, []string{"artifacts/T9/shot-001.png"}, rec.ArtifactRefs)
}

func TestHandle_SkipsCaptureWithoutDriverOrUISurface(t *testing.T) {
	log, _ := testLogger(t)
	cap := &stubCapturer{ref: "unused"}
	r := report.NewReporter(log, report.WithCapturer(cap))
	ctx := context.Background()

	// Web surface but no driver.
	r.Handle(ctx, errors.New("boom"), faults.Context{
		faults.KeySurface: faults.SurfaceWeb,
	})
	// Driver present but non-UI surface.
	r.Handle(ctx, errors.New("boom"), faults.Context{
		faults.KeySurface: faults.SurfaceDatabase,
		faults.KeyDriver:  struct{}{},
	})

	assert.Zero(t, cap.calls)
}

func TestHandle_CaptureFailureDoesNotBlockRecord(t *testing.T) {
	log, buf := testLogger(t)
	cap := &stubCapturer{err: errors.New("screenshot failed")}
	r := report.NewReporter(log, report.WithCapturer(cap))
	sink := &memorySink{}
	r.AddSink(sink)

	fctx := faults.Context{
		faults.KeySurface: faults.SurfaceMobile,
		faults.KeyDriver:  struct{}{},
	}
	rec := r.Handle(context.Background(), errors.New("tap failed: element not found"), fctx)

	assert.Empty(t, rec.ArtifactRefs)
	assert.Len(t, sink.records, 1)
	assert.Contains(t, buf.String(), "artifact capture failed")
}

func TestHandle_CapturePanicDoesNotBlockRecord(t *testing.T) {
	log, buf := testLogger(t)
	cap := &stubCapturer{panics: true}
	r := report.NewReporter(log, report.WithCapturer(cap))

	fctx := faults.Context{
		faults.KeySurface: faults.SurfaceWeb,
		faults.KeyDriver:  struct{}{},
	}
	var rec report.FailureRecord
	assert.NotPanics(t, func() {
		rec = r.Handle(context.Background(), errors.New("click failed"), fctx)
	})
	assert.Empty(t, rec.ArtifactRefs)
	assert.Contains(t, buf.String(), "artifact capture panicked")
}

func TestHandle_LogLevelMatchesSeverity(t *testing.T) {
	cases := []struct {
		fault error
		level string
	}{
		{errors.New("security violation in session"), "error"},
		{errors.New("connection reset by peer"), "warn"},
		{errors.New("minor layout drift"), "info"},
	}
	for _, tc := range cases {
		log, buf := testLogger(t)
		r := report.NewReporter(log)
		r.Handle(context.Background(), tc.fault, faults.Context{})

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, tc.level, line["level"], tc.fault.Error())
	}
}

func TestFailureRecord_JSONOmitsDriver(t *testing.T) {
	log, _ := testLogger(t)
	r := report.NewReporter(log)

	fctx := faults.Context{
		faults.KeyTestCaseID: "T3",
		faults.KeySurface:    faults.SurfaceWeb,
		faults.KeyDriver:     struct{ unexported chan int }{},
	}
	rec := r.Handle(context.Background(), errors.New("timeout"), fctx)

	payload, err := rec.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "major", decoded["severity"])
	assert.Equal(t, "continue_with_logging", decoded["decision"])

	ctxMap, ok := decoded["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "T3", ctxMap["test_case_id"])
	assert.NotContains(t, ctxMap, "driver")
}

func TestHandle_RetryProducesFreshRecords(t *testing.T) {
	log, _ := testLogger(t)
	r := report.NewReporter(log)
	ctx := context.Background()
	fctx := faults.Context{faults.KeyTestCaseID: "T5"}

	first := r.Handle(ctx, errors.New("timeout"), fctx)
	second := r.Handle(ctx, errors.New("timeout"), fctx)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Severity, second.Severity)
}
