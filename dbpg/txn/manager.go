// Package txn provides a transaction manager exposing nested transactional
// scopes over a single PostgreSQL connection. The outermost scope maps to a
// real transaction; inner scopes map to named savepoints, so a failure deep
// in fixture setup rolls back only its own work while the parent scope stays
// live.
package txn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qa-go/qaf/dbpg"
	"github.com/qa-go/qaf/logger"
)

const _savepointPrefix = "qaf_sp"

// Manager owns a per-connection stack of open transactional scopes.
// A Manager is bound to exactly one logical connection and is not safe for
// concurrent use: parallel test cases each own their own Manager.
type Manager struct {
	conn dbpg.Conn
	log  logger.Logger

	tx    dbpg.Tx
	stack []*Scope
}

// Scope is one entry in the transaction stack. Depth 0 is the root
// transaction; deeper scopes are savepoints on the same transaction.
type Scope struct {
	m         *Manager
	depth     int
	savepoint string
	closed    bool
}

type scopeConfig struct {
	isolation    sql.IsolationLevel
	hasIsolation bool
}

// ScopeOption represents a functional configuration option for one scope.
type ScopeOption func(*scopeConfig)

// WithIsolation overrides the isolation level of the root transaction.
// PostgreSQL cannot change isolation mid-transaction, so the override is
// ignored (with a debug log) when the scope being opened is nested.
func WithIsolation(level sql.IsolationLevel) ScopeOption {
	return func(c *scopeConfig) {
		c.isolation = level
		c.hasIsolation = true
	}
}

// NewManager creates a transaction manager bound to the given connection.
func NewManager(conn dbpg.Conn, log logger.Logger) *Manager {
	return &Manager{conn: conn, log: log}
}

// Depth returns the number of currently open scopes.
func (m *Manager) Depth() int {
	return len(m.stack)
}

// InScope reports whether any transactional scope is currently open.
func (m *Manager) InScope() bool {
	return len(m.stack) > 0
}

// WithTransaction runs fn inside a transactional scope with guaranteed
// release on every exit path. When no scope is open a root transaction is
// begun; otherwise a named savepoint is created on the live transaction.
//
// On normal return the savepoint is released (or the root committed). When
// fn returns an error the scope rolls back to its savepoint — the parent
// scope keeps its changes — or, at the root, the whole transaction rolls
// back. The original error from fn is returned unchanged so callers can
// classify the underlying fault.
func (m *Manager) WithTransaction(
	ctx context.Context,
	fn func(s *Scope) error,
	opts ...ScopeOption,
) (err error) {
	cfg := &scopeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	scope, err := m.enter(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = m.exit(ctx, scope, fmt.Errorf("panic inside transactional scope: %v", p))
			panic(p)
		}
	}()

	err = fn(scope)
	return m.exit(ctx, scope, err)
}

// ExecContext executes a statement against the innermost open scope, or in
// autocommit mode when no scope is open. Execution failures surface the
// underlying fault unchanged; retries belong at the call site.
func (m *Manager) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if m.tx != nil {
		return m.tx.ExecContext(ctx, query, args...)
	}
	return m.conn.ExecContext(ctx, query, args...)
}

// QueryRowContext executes a single-row query against the innermost open
// scope, or directly against the connection when no scope is open.
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...any) dbpg.Row {
	if m.tx != nil {
		return m.tx.QueryRowContext(ctx, query, args...)
	}
	return m.conn.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query against the innermost open scope, or
// directly against the connection when no scope is open.
func (m *Manager) QueryContext(ctx context.Context, query string, args ...any) (dbpg.Rows, error) {
	if m.tx != nil {
		return m.tx.QueryContext(ctx, query, args...)
	}
	return m.conn.QueryContext(ctx, query, args...)
}

// Depth returns the scope's position in the stack: 0 for the root.
func (s *Scope) Depth() int {
	return s.depth
}

// Savepoint returns the savepoint name, or "" for the root scope.
func (s *Scope) Savepoint() string {
	return s.savepoint
}

// Exec executes a statement inside this scope's transaction.
func (s *Scope) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	return s.m.tx.ExecContext(ctx, query, args...)
}

// QueryRow executes a single-row query inside this scope's transaction.
// On a closed scope the returned row's Scan yields ErrScopeClosed.
func (s *Scope) QueryRow(ctx context.Context, query string, args ...any) dbpg.Row {
	if s.closed {
		return closedRow{}
	}
	return s.m.tx.QueryRowContext(ctx, query, args...)
}

// Query executes a query inside this scope's transaction.
func (s *Scope) Query(ctx context.Context, query string, args ...any) (dbpg.Rows, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	return s.m.tx.QueryContext(ctx, query, args...)
}

// closedRow is returned by QueryRow on a closed scope; QueryRow itself has
// no error return, so the fault surfaces on Scan.
type closedRow struct{}

func (closedRow) Scan(...any) error { return ErrScopeClosed }

// enter opens a new scope: a root transaction when the stack is empty, a
// savepoint otherwise.
func (m *Manager) enter(ctx context.Context, cfg *scopeConfig) (*Scope, error) {
	if len(m.stack) == 0 {
		var txOpts *sql.TxOptions
		if cfg.hasIsolation {
			txOpts = &sql.TxOptions{Isolation: cfg.isolation}
		}
		tx, err := m.conn.BeginTx(ctx, txOpts)
		if err != nil {
			return nil, err
		}
		m.tx = tx
		scope := &Scope{m: m, depth: 0}
		m.stack = append(m.stack, scope)
		return scope, nil
	}

	if cfg.hasIsolation && m.log != nil {
		m.log.Debug("isolation override ignored on nested scope", "depth", len(m.stack))
	}

	name := fmt.Sprintf("%s_%d", _savepointPrefix, len(m.stack))
	if _, err := m.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	scope := &Scope{m: m, depth: len(m.stack), savepoint: name}
	m.stack = append(m.stack, scope)
	return scope, nil
}

// exit closes the scope, always popping its stack entry. Scope closure is
// strictly LIFO; closing anything but the innermost scope is a programming
// error reported immediately rather than silently corrupting the stack.
func (m *Manager) exit(ctx context.Context, scope *Scope, fnErr error) error {
	if len(m.stack) == 0 || m.stack[len(m.stack)-1] != scope {
		return ErrScopeOrder
	}
	m.stack = m.stack[:len(m.stack)-1]
	scope.closed = true

	if scope.depth > 0 {
		if fnErr != nil {
			if _, rbErr := m.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+scope.savepoint); rbErr != nil {
				m.logError(ctx, "rollback to savepoint failed", scope.savepoint, rbErr)
			}
			return fnErr
		}
		if _, relErr := m.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+scope.savepoint); relErr != nil {
			return relErr
		}
		return nil
	}

	tx := m.tx
	m.tx = nil
	if fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logError(ctx, "rollback failed", "", rbErr)
		}
		return fnErr
	}
	return tx.Commit()
}

func (m *Manager) logError(ctx context.Context, msg, savepoint string, err error) {
	if m.log == nil {
		return
	}
	attrs := []logger.Attr{logger.Any("error", err)}
	if savepoint != "" {
		attrs = append(attrs, logger.String("savepoint", savepoint))
	}
	m.log.LogAttrs(ctx, logger.ErrorLevel, msg, attrs...)
}
