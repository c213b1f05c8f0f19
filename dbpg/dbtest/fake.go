// Package dbtest provides a scripted in-memory stand-in for the dbpg
// connection surfaces. It understands just enough SQL to exercise the
// savepoint scope manager and the fixture layers: INSERT/DELETE on tagged
// tables, SAVEPOINT / ROLLBACK TO / RELEASE, and hook points for everything
// else.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/qa-go/qaf/dbpg"
)

var (
	insertRe = regexp.MustCompile(`(?i)^INSERT INTO (\S+) \(([^)]+)\) VALUES`)
	deleteRe = regexp.MustCompile(`(?i)^DELETE FROM (\S+)`)
)

// Row is one stored row: a table name plus column values.
type Row struct {
	Table  string
	Values map[string]any
}

// FakeDB implements dbpg.Conn over an in-memory row set with transactional
// snapshots, so savepoint rollback semantics can be asserted without a
// PostgreSQL server.
type FakeDB struct {
	mu sync.Mutex

	committed []Row

	// Statements records every statement executed, in order, including
	// transaction control issued by the scope manager.
	Statements []string

	// failures maps SQL substrings to injected errors.
	failures map[string]error

	// BeginErr, when set, fails the next BeginTx.
	BeginErr error

	// OnQueryRow, when set, scripts single-row query results. Returning
	// ok=false falls through to an error row.
	OnQueryRow func(query string, args []any) (vals []any, ok bool)

	// OnQuery, when set, scripts multi-row query results.
	OnQuery func(query string, args []any) ([][]any, bool)
}

// NewFakeDB creates an empty fake database.
func NewFakeDB() *FakeDB {
	return &FakeDB{failures: make(map[string]error)}
}

// FailOn injects an error for any statement whose SQL contains substr.
func (f *FakeDB) FailOn(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[substr] = err
}

// ClearFailures removes all injected errors.
func (f *FakeDB) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = make(map[string]error)
}

// RowCount returns the number of committed rows in table tagged with
// testCaseID. An empty testCaseID counts all rows of the table.
func (f *FakeDB) RowCount(table, testCaseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.committed {
		if r.Table != table {
			continue
		}
		if testCaseID != "" && r.Values["test_case_id"] != testCaseID {
			continue
		}
		n++
	}
	return n
}

// TotalRows returns the number of committed rows across all tables.
func (f *FakeDB) TotalRows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func (f *FakeDB) injected(query string) error {
	for substr, err := range f.failures {
		if strings.Contains(query, substr) {
			return err
		}
	}
	return nil
}

// BeginTx starts a fake transaction whose pending row set snapshots the
// committed state.
func (f *FakeDB) BeginTx(_ context.Context, _ *sql.TxOptions) (dbpg.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeginErr != nil {
		err := f.BeginErr
		f.BeginErr = nil
		return nil, err
	}
	f.Statements = append(f.Statements, "BEGIN")
	return &fakeTx{
		db:         f,
		pending:    append([]Row(nil), f.committed...),
		savepoints: make(map[string][]Row),
	}, nil
}

// ExecContext applies a statement in autocommit mode.
func (f *FakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statements = append(f.Statements, query)
	if err := f.injected(query); err != nil {
		return nil, err
	}
	rows, affected, err := apply(f.committed, query, args)
	if err != nil {
		return nil, err
	}
	f.committed = rows
	return rowsAffected(affected), nil
}

// QueryRowContext returns a scripted row, or an erroring row when no script
// matches.
func (f *FakeDB) QueryRowContext(_ context.Context, query string, args ...any) dbpg.Row {
	f.mu.Lock()
	f.Statements = append(f.Statements, query)
	hook := f.OnQueryRow
	injectedErr := f.injected(query)
	f.mu.Unlock()

	if injectedErr != nil {
		return &fakeRow{err: injectedErr}
	}
	if hook != nil {
		if vals, ok := hook(query, args); ok {
			return &fakeRow{vals: vals}
		}
	}
	return &fakeRow{err: sql.ErrNoRows}
}

// QueryContext returns scripted rows, or an empty result when no script
// matches.
func (f *FakeDB) QueryContext(_ context.Context, query string, args ...any) (dbpg.Rows, error) {
	f.mu.Lock()
	f.Statements = append(f.Statements, query)
	hook := f.OnQuery
	injectedErr := f.injected(query)
	f.mu.Unlock()

	if injectedErr != nil {
		return nil, injectedErr
	}
	if hook != nil {
		if rows, ok := hook(query, args); ok {
			return &fakeRows{rows: rows, idx: -1}, nil
		}
	}
	return &fakeRows{idx: -1}, nil
}

// fakeTx is a transaction over a pending snapshot with named savepoints.
type fakeTx struct {
	db         *FakeDB
	pending    []Row
	savepoints map[string][]Row
	done       bool
}

func (t *fakeTx) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.db.Statements = append(t.db.Statements, query)
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}
	if err := t.db.injected(query); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "SAVEPOINT "):
		name := strings.TrimSpace(trimmed[len("SAVEPOINT "):])
		t.savepoints[name] = append([]Row(nil), t.pending...)
		return rowsAffected(0), nil
	case strings.HasPrefix(upper, "ROLLBACK TO SAVEPOINT "):
		name := strings.TrimSpace(trimmed[len("ROLLBACK TO SAVEPOINT "):])
		snap, ok := t.savepoints[name]
		if !ok {
			return nil, fmt.Errorf("savepoint %q does not exist", name)
		}
		t.pending = append([]Row(nil), snap...)
		return rowsAffected(0), nil
	case strings.HasPrefix(upper, "RELEASE SAVEPOINT "):
		name := strings.TrimSpace(trimmed[len("RELEASE SAVEPOINT "):])
		if _, ok := t.savepoints[name]; !ok {
			return nil, fmt.Errorf("savepoint %q does not exist", name)
		}
		delete(t.savepoints, name)
		return rowsAffected(0), nil
	}

	rows, affected, err := apply(t.pending, query, args)
	if err != nil {
		return nil, err
	}
	t.pending = rows
	return rowsAffected(affected), nil
}

func (t *fakeTx) QueryRowContext(_ context.Context, query string, args ...any) dbpg.Row {
	t.db.mu.Lock()
	t.db.Statements = append(t.db.Statements, query)
	hook := t.db.OnQueryRow
	t.db.mu.Unlock()

	if hook != nil {
		if vals, ok := hook(query, args); ok {
			return &fakeRow{vals: vals}
		}
	}
	return &fakeRow{err: sql.ErrNoRows}
}

func (t *fakeTx) QueryContext(_ context.Context, query string, args ...any) (dbpg.Rows, error) {
	t.db.mu.Lock()
	t.db.Statements = append(t.db.Statements, query)
	hook := t.db.OnQuery
	t.db.mu.Unlock()

	if hook != nil {
		if rows, ok := hook(query, args); ok {
			return &fakeRows{rows: rows, idx: -1}, nil
		}
	}
	return &fakeRows{idx: -1}, nil
}

func (t *fakeTx) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.db.Statements = append(t.db.Statements, "COMMIT")
	t.db.committed = t.pending
	return nil
}

func (t *fakeTx) Rollback() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.db.Statements = append(t.db.Statements, "ROLLBACK")
	return nil
}

// apply interprets INSERT and DELETE statements against a row set and
// returns the updated set.
func apply(rows []Row, query string, args []any) ([]Row, int64, error) {
	trimmed := strings.TrimSpace(query)

	if m := insertRe.FindStringSubmatch(trimmed); m != nil {
		table := m[1]
		cols := strings.Split(m[2], ",")
		if len(cols) != len(args) {
			return nil, 0, fmt.Errorf("insert into %s: %d columns but %d args", table, len(cols), len(args))
		}
		values := make(map[string]any, len(cols))
		for i, col := range cols {
			values[strings.TrimSpace(col)] = args[i]
		}
		return append(rows, Row{Table: table, Values: values}), 1, nil
	}

	if m := deleteRe.FindStringSubmatch(trimmed); m != nil {
		table := m[1]
		var tag any
		if strings.Contains(strings.ToLower(trimmed), "test_case_id") && len(args) > 0 {
			tag = args[0]
		}
		kept := rows[:0:0]
		var affected int64
		for _, r := range rows {
			if r.Table == table && (tag == nil || r.Values["test_case_id"] == tag) {
				affected++
				continue
			}
			kept = append(kept, r)
		}
		return kept, affected, nil
	}

	// DDL and anything else is accepted and recorded but has no row effect.
	return rows, 0, nil
}

type rowsAffected int64

func (n rowsAffected) LastInsertId() (int64, error) { return 0, nil }
func (n rowsAffected) RowsAffected() (int64, error) { return int64(n), nil }

type fakeRow struct {
	vals []any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.vals, dest)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return fmt.Errorf("scan called without next")
	}
	return scanInto(r.rows[r.idx], dest)
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func scanInto(vals []any, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values but %d destinations", len(vals), len(dest))
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("scan: value %d is %T, want string", i, v)
			}
			*d = s
		case *int:
			switch n := v.(type) {
			case int:
				*d = n
			case int64:
				*d = int(n)
			default:
				return fmt.Errorf("scan: value %d is %T, want int", i, v)
			}
		case *int64:
			switch n := v.(type) {
			case int:
				*d = int64(n)
			case int64:
				*d = n
			default:
				return fmt.Errorf("scan: value %d is %T, want int64", i, v)
			}
		case *bool:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("scan: value %d is %T, want bool", i, v)
			}
			*d = b
		case *any:
			*d = v
		default:
			return fmt.Errorf("scan: unsupported destination type %T", dest[i])
		}
	}
	return nil
}
