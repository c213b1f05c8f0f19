// Package dbpg provides PostgreSQL connection management for test fixtures.
// Unlike a production service there are no replicas to balance across: every
// suite owns a single target database plus an administrative connection used
// for database lifecycle operations.
package dbpg

import (
	"context"
	"database/sql"
	"time"

	// Register PostgreSQL driver for database/sql.
	_ "github.com/lib/pq"

	"github.com/qa-go/qaf/retry"
)

// Row is the single-row result surface used across the database layer.
// Satisfied by *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the multi-row result surface used across the database layer.
// Satisfied by *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Tx is the transaction surface consumed by the savepoint scope manager.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	Commit() error
	Rollback() error
}

// Conn is the connection surface consumed by the upper layers (transaction
// manager, schema lifecycle, isolation manager). *DB implements it; tests
// substitute scripted fakes.
type Conn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// DB represents a database connection bound to one logical database.
type DB struct {
	SQL *sql.DB
}

// Options defines database connection configuration options.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func applyOptions(db *sql.DB, opts *Options) {
	if opts == nil {
		return
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
}

// New creates a new DB instance for the given DSN.
func New(dsn string, opts *Options) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	applyOptions(db, opts)

	return &DB{SQL: db}, nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.SQL.Close()
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := db.SQL.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// ExecContext executes a statement outside any explicit transaction
// (autocommit).
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.SQL.ExecContext(ctx, query, args...)
}

// QueryRowContext executes a single-row query.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return db.SQL.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query returning multiple rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecWithRetry executes a statement with a retry strategy.
func (db *DB) ExecWithRetry(
	ctx context.Context,
	strategy retry.Strategy,
	query string,
	args ...any,
) (sql.Result, error) {
	var res sql.Result
	err := retry.DoContext(ctx, strategy, func() error {
		r, e := db.ExecContext(ctx, query, args...)
		if e == nil {
			res = r
		}
		return e
	})
	return res, err
}

// QueryWithRetry executes a query with a retry strategy.
func (db *DB) QueryWithRetry(
	ctx context.Context,
	strategy retry.Strategy,
	query string,
	args ...any,
) (Rows, error) {
	var rows Rows
	err := retry.DoContext(ctx, strategy, func() error {
		r, e := db.QueryContext(ctx, query, args...)
		if e == nil {
			rows = r
		}
		return e
	})
	return rows, err
}

// sqlTx adapts *sql.Tx to the Tx interface.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqlTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
