// Package backup orchestrates database snapshots through the PostgreSQL
// client tools. Dumps are taken with pg_dump in custom format and restored
// with pg_restore into a freshly recreated database. A missing tool, a
// failed dump or a missing dump file never stops the suite: the coordinator
// reports the fault and degrades.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/qa-go/qaf/dbpg/schema"
	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/helpers"
	"github.com/qa-go/qaf/logger"
	"github.com/qa-go/qaf/report"
)

// ToolRunner executes an external client tool. Credentials travel only
// through env, never through args.
type ToolRunner interface {
	Run(ctx context.Context, name string, args, env []string) (exitCode int, stdout, stderr string, err error)
}

// Config holds the connection and filesystem settings for the coordinator.
type Config struct {
	// Dir is the directory holding dump files.
	Dir string
	// Host, Port, User, Password identify the PostgreSQL server. The
	// password is passed to the tools via PGPASSWORD only.
	Host     string
	Port     int
	User     string
	Password string
	// ToolTimeout bounds a single tool invocation; zero means no bound.
	ToolTimeout time.Duration
}

// Handle references one finished dump. A handle stays valid for repeated
// restores until Cleanup removes its file.
type Handle struct {
	ID             string
	SourceDatabase string
	FilePath       string
	CreatedAt      time.Time
}

// Valid reports whether the handle references a dump.
func (h Handle) Valid() bool {
	return h.FilePath != ""
}

// Coordinator drives pg_dump and pg_restore around the schema lifecycle.
type Coordinator struct {
	cfg       Config
	lifecycle *schema.Lifecycle
	reporter  *report.Reporter
	log       logger.Logger
	runner    ToolRunner
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRunner replaces the exec-based tool runner.
func WithRunner(r ToolRunner) Option {
	return func(c *Coordinator) {
		c.runner = r
	}
}

// NewCoordinator creates a backup coordinator. Restores recreate the target
// database through lc; faults are reported through reporter.
func NewCoordinator(cfg Config, lc *schema.Lifecycle, reporter *report.Reporter, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		lifecycle: lc,
		reporter:  reporter,
		log:       log,
		runner:    execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backup dumps the named database into the backup directory and returns a
// handle to the dump. Any failure, including absent client tooling, yields
// a zero handle and a reported fault; Backup never returns an error.
func (c *Coordinator) Backup(ctx context.Context, database string) Handle {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		c.reportFailure(ctx, "backup", database, fmt.Errorf("create backup dir: %w", err))
		return Handle{}
	}

	id := helpers.CreateUUID()
	path := filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s.dump", database, id))

	args := append(c.connArgs(),
		"--format=custom",
		"--dbname="+database,
		"--file="+path,
	)
	if err := c.runTool(ctx, "pg_dump", args); err != nil {
		c.reportFailure(ctx, "backup", database, err)
		return Handle{}
	}

	h := Handle{
		ID:             id,
		SourceDatabase: database,
		FilePath:       path,
		CreatedAt:      time.Now().UTC(),
	}
	c.log.Ctx(ctx).Info("backup created",
		"backup_id", h.ID, "database", database, "file", path)
	return h
}

// Restore recreates the target database and loads the dump referenced by h
// into it. A missing dump file leaves the target untouched. Returns whether
// the restore completed; failures are reported, never raised.
func (c *Coordinator) Restore(ctx context.Context, h Handle, target string) bool {
	if !h.Valid() {
		c.reportFailure(ctx, "restore", target, errors.New("restore: empty backup handle"))
		return false
	}
	if _, err := os.Stat(h.FilePath); err != nil {
		c.reportFailure(ctx, "restore", target,
			fmt.Errorf("restore: dump file %s unavailable: %w", h.FilePath, err))
		return false
	}

	if err := c.lifecycle.DropDatabase(ctx, target); err != nil {
		c.reportFailure(ctx, "restore", target, err)
		return false
	}
	if err := c.lifecycle.CreateDatabase(ctx, target); err != nil {
		c.reportFailure(ctx, "restore", target, err)
		return false
	}

	args := append(c.connArgs(),
		"--dbname="+target,
		h.FilePath,
	)
	if err := c.runTool(ctx, "pg_restore", args); err != nil {
		c.reportFailure(ctx, "restore", target, err)
		return false
	}

	c.log.Ctx(ctx).Info("backup restored",
		"backup_id", h.ID, "source", h.SourceDatabase, "target", target)
	return true
}

// Cleanup removes all dump files from the backup directory, best effort.
// Individual removal failures are logged and skipped.
func (c *Coordinator) Cleanup(ctx context.Context) {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Ctx(ctx).Warn("backup dir unreadable", "dir", c.cfg.Dir, "error", err.Error())
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dump") {
			continue
		}
		path := filepath.Join(c.cfg.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.log.Ctx(ctx).Warn("backup file not removed", "file", path, "error", err.Error())
			continue
		}
		c.log.Ctx(ctx).Debug("backup file removed", "file", path)
	}
}

func (c *Coordinator) connArgs() []string {
	return []string{
		"--host=" + c.cfg.Host,
		"--port=" + strconv.Itoa(c.cfg.Port),
		"--username=" + c.cfg.User,
		"--no-password",
	}
}

func (c *Coordinator) runTool(ctx context.Context, tool string, args []string) error {
	if c.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ToolTimeout)
		defer cancel()
	}

	env := []string{"PGPASSWORD=" + c.cfg.Password}
	exit, _, stderr, err := c.runner.Run(ctx, tool, args, env)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	if exit != 0 {
		return fmt.Errorf("%s exited with code %d: %s", tool, exit, strings.TrimSpace(stderr))
	}
	return nil
}

func (c *Coordinator) reportFailure(ctx context.Context, action, database string, err error) {
	c.reporter.Handle(ctx, faults.WithSeverity(err, faults.Major), faults.Context{
		faults.KeySurface: faults.SurfaceDatabase,
		"action":          action,
		"database":        database,
	})
}

// execRunner runs tools through os/exec. The context bounds the process
// lifetime.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args, env []string) (int, string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), stderr.String(), nil
		}
		return 0, stdout.String(), stderr.String(), err
	}
	return 0, stdout.String(), stderr.String(), nil
}
