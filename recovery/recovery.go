// Package recovery restores a usable execution environment after a fault.
// Each execution surface has a registered handler that asserts the driver's
// capabilities and performs the surface-specific reset. Recovery reports
// success or failure but never raises: a broken recovery attempt is itself
// handled as a fault.
package recovery

import (
	"context"
	"fmt"

	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/logger"
	"github.com/qa-go/qaf/report"
)

// Capability interfaces the built-in handlers assert on the opaque driver
// handle. A driver implements only the ones its surface needs.
type (
	// PageReloader reloads the current browser page.
	PageReloader interface {
		ReloadPage(ctx context.Context) error
	}

	// SessionResetter tears down and restarts the device or app session.
	SessionResetter interface {
		ResetSession(ctx context.Context) error
	}

	// CredentialRefresher obtains fresh credentials for the API client.
	CredentialRefresher interface {
		RefreshCredentials(ctx context.Context) error
	}

	// ConnectionResetter drops and reopens the database connection.
	ConnectionResetter interface {
		ResetConnection(ctx context.Context) error
	}
)

// Handler performs the recovery action for one surface.
type Handler interface {
	Recover(ctx context.Context, fault error, fctx faults.Context) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, fault error, fctx faults.Context) error

// Recover calls f.
func (f HandlerFunc) Recover(ctx context.Context, fault error, fctx faults.Context) error {
	return f(ctx, fault, fctx)
}

// Registry maps execution surfaces to recovery handlers. It ships with
// built-in handlers for the four known surfaces; Register replaces them.
type Registry struct {
	log      logger.Logger
	reporter *report.Reporter
	handlers map[faults.Surface]Handler
}

// NewRegistry creates a registry with the built-in handlers installed.
// Recovery failures are reported through reporter.
func NewRegistry(log logger.Logger, reporter *report.Reporter) *Registry {
	r := &Registry{
		log:      log,
		reporter: reporter,
		handlers: make(map[faults.Surface]Handler, 4),
	}
	r.handlers[faults.SurfaceWeb] = HandlerFunc(reloadPage)
	r.handlers[faults.SurfaceMobile] = HandlerFunc(resetSession)
	r.handlers[faults.SurfaceAPI] = HandlerFunc(refreshCredentials)
	r.handlers[faults.SurfaceDatabase] = HandlerFunc(resetConnection)
	return r
}

// Register installs h as the handler for surface, replacing any existing
// one. Registration is expected before execution starts; the registry does
// no locking.
func (r *Registry) Register(surface faults.Surface, h Handler) {
	r.handlers[surface] = h
}

// Recover runs the handler registered for surface and reports whether the
// environment is usable again. An unknown surface, a handler error or a
// handler panic all yield false; the latter two are additionally reported
// as recoverable faults. Recover never panics.
func (r *Registry) Recover(ctx context.Context, surface faults.Surface, fault error, fctx faults.Context) bool {
	handler, ok := r.handlers[surface]
	if !ok {
		r.log.Ctx(ctx).Debug("no recovery handler for surface", "surface", string(surface))
		return false
	}

	err := r.runHandler(ctx, handler, fault, fctx)
	if err != nil {
		r.reportFailure(ctx, surface, err, fctx)
		return false
	}

	r.log.Ctx(ctx).Info("recovery succeeded",
		"surface", string(surface), "test_case_id", fctx.TestCaseID())
	return true
}

// runHandler shields the registry from panicking handlers.
func (r *Registry) runHandler(ctx context.Context, h Handler, fault error, fctx faults.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recovery handler panicked: %v", p)
		}
	}()
	return h.Recover(ctx, fault, fctx)
}

func (r *Registry) reportFailure(ctx context.Context, surface faults.Surface, err error, fctx faults.Context) {
	reportCtx := make(faults.Context, len(fctx)+2)
	for k, v := range fctx {
		reportCtx[k] = v
	}
	reportCtx["action"] = "error_recovery"
	reportCtx[faults.KeySurface] = surface

	wrapped := faults.WithSeverity(
		fmt.Errorf("recovery on %s surface failed: %w", surface, err), faults.Major)
	r.reporter.Handle(ctx, wrapped, reportCtx)
}

func reloadPage(ctx context.Context, _ error, fctx faults.Context) error {
	reloader, ok := fctx.Driver().(PageReloader)
	if !ok {
		return fmt.Errorf("driver %T cannot reload pages", fctx.Driver())
	}
	return reloader.ReloadPage(ctx)
}

func resetSession(ctx context.Context, _ error, fctx faults.Context) error {
	resetter, ok := fctx.Driver().(SessionResetter)
	if !ok {
		return fmt.Errorf("driver %T cannot reset sessions", fctx.Driver())
	}
	return resetter.ResetSession(ctx)
}

func refreshCredentials(ctx context.Context, _ error, fctx faults.Context) error {
	refresher, ok := fctx.Driver().(CredentialRefresher)
	if !ok {
		return fmt.Errorf("driver %T cannot refresh credentials", fctx.Driver())
	}
	return refresher.RefreshCredentials(ctx)
}

func resetConnection(ctx context.Context, _ error, fctx faults.Context) error {
	resetter, ok := fctx.Driver().(ConnectionResetter)
	if !ok {
		return fmt.Errorf("driver %T cannot reset connections", fctx.Driver())
	}
	return resetter.ResetConnection(ctx)
}
