package recovery_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/logger"
	"github.com/qa-go/qaf/recovery"
	"github.com/qa-go/qaf/report"
)

type fakeDriver struct {
	reloads  int
	resets   int
	fail     error
	panicMsg string
}

func (d *fakeDriver) ReloadPage(context.Context) error {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	d.reloads++
	return d.fail
}

func (d *fakeDriver) ResetSession(context.Context) error {
	d.resets++
	return d.fail
}

type apiDriver struct{ refreshes int }

func (d *apiDriver) RefreshCredentials(context.Context) error {
	d.refreshes++
	return nil
}

type dbDriver struct{ resets int }

func (d *dbDriver) ResetConnection(context.Context) error {
	d.resets++
	return nil
}

type recordingSink struct {
	records []report.FailureRecord
}

func (s *recordingSink) Emit(_ context.Context, rec report.FailureRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func newRegistry(t *testing.T) (*recovery.Registry, *recordingSink, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "test", logger.WithWriter(&buf))
	sink := &recordingSink{}
	rep := report.NewReporter(log)
	rep.AddSink(sink)
	return recovery.NewRegistry(log, rep), sink, &buf
}

func fctxWith(driver any, surface faults.Surface) faults.Context {
	return faults.Context{
		faults.KeyTestCaseID: "T1",
		faults.KeySurface:    surface,
		faults.KeyDriver:     driver,
	}
}

func TestRecover_WebReloadsPage(t *testing.T) {
	reg, sink, _ := newRegistry(t)
	drv := &fakeDriver{}

	ok := reg.Recover(context.Background(), faults.SurfaceWeb,
		errors.New("element not found"), fctxWith(drv, faults.SurfaceWeb))

	assert.True(t, ok)
	assert.Equal(t, 1, drv.reloads)
	assert.Empty(t, sink.records)
}

func TestRecover_MobileResetsSession(t *testing.T) {
	reg, _, _ := newRegistry(t)
	drv := &fakeDriver{}

	ok := reg.Recover(context.Background(), faults.SurfaceMobile,
		errors.New("tap timeout"), fctxWith(drv, faults.SurfaceMobile))

	assert.True(t, ok)
	assert.Equal(t, 1, drv.resets)
}

func TestRecover_APIRefreshesCredentials(t *testing.T) {
	reg, _, _ := newRegistry(t)
	drv := &apiDriver{}

	ok := reg.Recover(context.Background(), faults.SurfaceAPI,
		errors.New("401 unauthorized"), fctxWith(drv, faults.SurfaceAPI))

	assert.True(t, ok)
	assert.Equal(t, 1, drv.refreshes)
}

func TestRecover_DatabaseResetsConnection(t *testing.T) {
	reg, _, _ := newRegistry(t)
	drv := &dbDriver{}

	ok := reg.Recover(context.Background(), faults.SurfaceDatabase,
		errors.New("connection reset"), fctxWith(drv, faults.SurfaceDatabase))

	assert.True(t, ok)
	assert.Equal(t, 1, drv.resets)
}

func TestRecover_IncapableDriverReportsMajor(t *testing.T) {
	reg, sink, _ := newRegistry(t)

	// dbDriver cannot reload pages.
	ok := reg.Recover(context.Background(), faults.SurfaceWeb,
		errors.New("click failed"), fctxWith(&dbDriver{}, faults.SurfaceWeb))

	assert.False(t, ok)
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, faults.Major, rec.Severity)
	assert.Equal(t, "error_recovery", rec.Context["action"])
	assert.Contains(t, rec.Message, "cannot reload pages")
}

func TestRecover_HandlerErrorReportsAndReturnsFalse(t *testing.T) {
	reg, sink, _ := newRegistry(t)
	drv := &fakeDriver{fail: errors.New("browser is gone")}

	ok := reg.Recover(context.Background(), faults.SurfaceWeb,
		errors.New("stale element"), fctxWith(drv, faults.SurfaceWeb))

	assert.False(t, ok)
	require.Len(t, sink.records, 1)
	assert.Equal(t, faults.Major, sink.records[0].Severity)
	assert.Contains(t, sink.records[0].Message, "browser is gone")
}

func TestRecover_HandlerPanicIsContained(t *testing.T) {
	reg, sink, _ := newRegistry(t)
	drv := &fakeDriver{panicMsg: "nil session"}

	var ok bool
	assert.NotPanics(t, func() {
		ok = reg.Recover(context.Background(), faults.SurfaceWeb,
			errors.New("stale element"), fctxWith(drv, faults.SurfaceWeb))
	})

	assert.False(t, ok)
	require.Len(t, sink.records, 1)
	assert.Contains(t, sink.records[0].Message, "recovery handler panicked")
}

func TestRecover_UnknownSurfaceReturnsFalseSilently(t *testing.T) {
	reg, sink, _ := newRegistry(t)

	ok := reg.Recover(context.Background(), faults.Surface("desktop"),
		errors.New("boom"), faults.Context{})

	assert.False(t, ok)
	assert.Empty(t, sink.records)
}

func TestRegister_ReplacesBuiltinHandler(t *testing.T) {
	reg, sink, _ := newRegistry(t)

	var called bool
	reg.Register(faults.SurfaceWeb, recovery.HandlerFunc(
		func(context.Context, error, faults.Context) error {
			called = true
			return nil
		}))

	ok := reg.Recover(context.Background(), faults.SurfaceWeb,
		errors.New("boom"), faults.Context{})

	assert.True(t, ok)
	assert.True(t, called)
	assert.Empty(t, sink.records)
}
