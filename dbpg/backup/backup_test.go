package backup_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-go/qaf/dbpg/backup"
	"github.com/qa-go/qaf/dbpg/dbtest"
	"github.com/qa-go/qaf/dbpg/schema"
	"github.com/qa-go/qaf/dbpg/txn"
	"github.com/qa-go/qaf/faults"
	"github.com/qa-go/qaf/logger"
	"github.com/qa-go/qaf/report"
)

type call struct {
	name string
	args []string
	env  []string
}

// fakeRunner scripts tool invocations. pg_dump creates the file named by
// --file= so restores can find it.
type fakeRunner struct {
	calls    []call
	exitCode int
	stderr   string
	err      error
}

func (r *fakeRunner) Run(_ context.Context, name string, args, env []string) (int, string, string, error) {
	r.calls = append(r.calls, call{name: name, args: args, env: env})
	if r.err != nil {
		return 0, "", "", r.err
	}
	if r.exitCode != 0 {
		return r.exitCode, "", r.stderr, nil
	}
	if name == "pg_dump" {
		for _, a := range args {
			if path, ok := strings.CutPrefix(a, "--file="); ok {
				_ = os.WriteFile(path, []byte("PGDMP"), 0o644)
			}
		}
	}
	return 0, "", "", nil
}

type recordingSink struct {
	records []report.FailureRecord
}

func (s *recordingSink) Emit(_ context.Context, rec report.FailureRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func newCoordinator(t *testing.T, runner backup.ToolRunner) (*backup.Coordinator, *recordingSink, *dbtest.FakeDB) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "test", logger.WithWriter(&buf))

	admin := dbtest.NewFakeDB()
	target := dbtest.NewFakeDB()
	lc := schema.NewLifecycle(admin, txn.NewManager(target, log), log)

	sink := &recordingSink{}
	rep := report.NewReporter(log)
	rep.AddSink(sink)

	cfg := backup.Config{
		Dir:         t.TempDir(),
		Host:        "localhost",
		Port:        5432,
		User:        "qa",
		Password:    "hunter2",
		ToolTimeout: time.Second,
	}
	return backup.NewCoordinator(cfg, lc, rep, log, backup.WithRunner(runner)), sink, admin
}

func TestBackup_RunsPgDumpAndReturnsHandle(t *testing.T) {
	runner := &fakeRunner{}
	c, sink, _ := newCoordinator(t, runner)

	h := c.Backup(context.Background(), "qa_fixtures")

	require.True(t, h.Valid())
	assert.Equal(t, "qa_fixtures", h.SourceDatabase)
	assert.NotEmpty(t, h.ID)
	assert.False(t, h.CreatedAt.IsZero())
	assert.FileExists(t, h.FilePath)
	assert.Empty(t, sink.records)

	require.Len(t, runner.calls, 1)
	got := runner.calls[0]
	assert.Equal(t, "pg_dump", got.name)
	assert.Contains(t, got.args, "--format=custom")
	assert.Contains(t, got.args, "--dbname=qa_fixtures")
	assert.Contains(t, got.args, "--username=qa")
}

func TestBackup_PasswordOnlyInEnv(t *testing.T) {
	runner := &fakeRunner{}
	c, _, _ := newCoordinator(t, runner)

	c.Backup(context.Background(), "qa_fixtures")

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].env, "PGPASSWORD=hunter2")
	for _, a := range runner.calls[0].args {
		assert.NotContains(t, a, "hunter2")
	}
}

func TestBackup_ToolFailureYieldsZeroHandleAndMajorReport(t *testing.T) {
	runner := &fakeRunner{exitCode: 1, stderr: "pg_dump: connection refused"}
	c, sink, _ := newCoordinator(t, runner)

	h := c.Backup(context.Background(), "qa_fixtures")

	assert.False(t, h.Valid())
	require.Len(t, sink.records, 1)
	assert.Equal(t, faults.Major, sink.records[0].Severity)
	assert.Contains(t, sink.records[0].Message, "connection refused")
	assert.Equal(t, "backup", sink.records[0].Context["action"])
}

func TestBackup_MissingToolDoesNotPanic(t *testing.T) {
	runner := &fakeRunner{err: errors.New(`exec: "pg_dump": executable file not found in $PATH`)}
	c, sink, _ := newCoordinator(t, runner)

	var h backup.Handle
	assert.NotPanics(t, func() {
		h = c.Backup(context.Background(), "qa_fixtures")
	})
	assert.False(t, h.Valid())
	assert.Len(t, sink.records, 1)
}

func TestRestore_RecreatesTargetAndRunsPgRestore(t *testing.T) {
	runner := &fakeRunner{}
	c, sink, admin := newCoordinator(t, runner)
	ctx := context.Background()

	h := c.Backup(ctx, "qa_fixtures")
	require.True(t, h.Valid())

	ok := c.Restore(ctx, h, "qa_fixtures_restored")

	assert.True(t, ok)
	assert.Empty(t, sink.records)

	// Drop then create ran on the admin connection before pg_restore.
	joined := strings.Join(admin.Statements, "\n")
	assert.Contains(t, joined, `DROP DATABASE IF EXISTS "qa_fixtures_restored"`)
	assert.Contains(t, joined, `CREATE DATABASE "qa_fixtures_restored"`)

	require.Len(t, runner.calls, 2)
	last := runner.calls[1]
	assert.Equal(t, "pg_restore", last.name)
	assert.Contains(t, last.args, "--dbname=qa_fixtures_restored")
	assert.Contains(t, last.args, h.FilePath)
}

func TestRestore_MissingFileLeavesTargetUntouched(t *testing.T) {
	runner := &fakeRunner{}
	c, sink, admin := newCoordinator(t, runner)

	h := backup.Handle{
		ID:             "b1",
		SourceDatabase: "qa_fixtures",
		FilePath:       filepath.Join(t.TempDir(), "gone.dump"),
		CreatedAt:      time.Now(),
	}
	ok := c.Restore(context.Background(), h, "qa_fixtures")

	assert.False(t, ok)
	assert.Empty(t, admin.Statements)
	assert.Empty(t, runner.calls)
	require.Len(t, sink.records, 1)
	assert.Equal(t, faults.Major, sink.records[0].Severity)
	assert.Equal(t, "restore", sink.records[0].Context["action"])
}

func TestRestore_HandleValidForRepeatedRestores(t *testing.T) {
	runner := &fakeRunner{}
	c, sink, _ := newCoordinator(t, runner)
	ctx := context.Background()

	h := c.Backup(ctx, "qa_fixtures")
	require.True(t, c.Restore(ctx, h, "qa_fixtures"))
	require.True(t, c.Restore(ctx, h, "qa_fixtures"))
	assert.Empty(t, sink.records)
}

func TestRestore_PgRestoreFailureReturnsFalse(t *testing.T) {
	runner := &fakeRunner{}
	c, sink, _ := newCoordinator(t, runner)
	ctx := context.Background()

	h := c.Backup(ctx, "qa_fixtures")
	require.True(t, h.Valid())

	runner.exitCode = 2
	runner.stderr = "pg_restore: error: unsupported version"
	ok := c.Restore(ctx, h, "qa_fixtures")

	assert.False(t, ok)
	require.Len(t, sink.records, 1)
	assert.Contains(t, sink.records[0].Message, "unsupported version")
}

func TestCleanup_RemovesDumpFilesOnly(t *testing.T) {
	runner := &fakeRunner{}
	c, _, _ := newCoordinator(t, runner)
	ctx := context.Background()

	h1 := c.Backup(ctx, "qa_fixtures")
	h2 := c.Backup(ctx, "qa_fixtures")
	require.True(t, h1.Valid())
	require.True(t, h2.Valid())

	keep := filepath.Join(filepath.Dir(h1.FilePath), "notes.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep me"), 0o644))

	c.Cleanup(ctx)

	assert.NoFileExists(t, h1.FilePath)
	assert.NoFileExists(t, h2.FilePath)
	assert.FileExists(t, keep)
}

func TestCleanup_MissingDirIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	var buf bytes.Buffer
	log := logger.NewZerologAdapter("reliability", "test", logger.WithWriter(&buf))
	admin := dbtest.NewFakeDB()
	lc := schema.NewLifecycle(admin, txn.NewManager(dbtest.NewFakeDB(), log), log)
	rep := report.NewReporter(log)

	cfg := backup.Config{Dir: filepath.Join(t.TempDir(), "nope")}
	c := backup.NewCoordinator(cfg, lc, rep, log, backup.WithRunner(runner))

	assert.NotPanics(t, func() { c.Cleanup(context.Background()) })
}
