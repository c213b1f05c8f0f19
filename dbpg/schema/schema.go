// Package schema manages the lifecycle of logical test databases: creating
// and dropping them through an administrative connection, and applying or
// tearing down the fixture schema as one atomic unit.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/qa-go/qaf/dbpg"
	"github.com/qa-go/qaf/dbpg/txn"
	"github.com/qa-go/qaf/logger"
)

// Version identifies the fixture schema revision applied by ApplySchema.
const Version = 3

// ddl is the fixed, versioned set of table and index definitions. Applied in
// order inside a single root transaction, all-or-nothing.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS test_users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		test_case_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS test_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		test_case_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS test_products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price_cents BIGINT NOT NULL DEFAULT 0,
		category_id TEXT REFERENCES test_categories(id),
		test_case_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS test_orders (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES test_users(id),
		product_id TEXT REFERENCES test_products(id),
		quantity INTEGER NOT NULL DEFAULT 1,
		test_case_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_users_case ON test_users (test_case_id)`,
	`CREATE INDEX IF NOT EXISTS idx_test_categories_case ON test_categories (test_case_id)`,
	`CREATE INDEX IF NOT EXISTS idx_test_products_case ON test_products (test_case_id)`,
	`CREATE INDEX IF NOT EXISTS idx_test_orders_case ON test_orders (test_case_id)`,
}

// Tables returns the fixture table names in dependency order, dependents
// last. The isolation manager deletes in reverse order.
func Tables() []string {
	return []string{"test_users", "test_categories", "test_products", "test_orders"}
}

// Lifecycle creates and drops logical test databases and their schema.
// Database-level operations run on the administrative connection; schema
// operations run through the transaction manager bound to the target
// database. Faults propagate unchanged to the caller for classification.
type Lifecycle struct {
	admin dbpg.Conn
	tm    *txn.Manager
	log   logger.Logger
}

// NewLifecycle creates a schema lifecycle over the given administrative
// connection and target-database transaction manager.
func NewLifecycle(admin dbpg.Conn, tm *txn.Manager, log logger.Logger) *Lifecycle {
	return &Lifecycle{admin: admin, tm: tm, log: log}
}

// CreateDatabase creates the named database if it does not already exist.
// Idempotent: an existing database is left untouched.
func (l *Lifecycle) CreateDatabase(ctx context.Context, name string) error {
	var one int
	err := l.admin.QueryRowContext(ctx,
		`SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
	if err == nil {
		if l.log != nil {
			l.log.Debug("database already exists", "database", name)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	// CREATE DATABASE cannot be parameterized.
	_, err = l.admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	if l.log != nil {
		l.log.Info("database created", "database", name)
	}
	return nil
}

// DropDatabase terminates other active connections to the named database and
// drops it. Idempotent: dropping an absent database is not an error.
func (l *Lifecycle) DropDatabase(ctx context.Context, name string) error {
	_, err := l.admin.ExecContext(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity
		 WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
	if err != nil {
		return fmt.Errorf("terminate connections to %s: %w", name, err)
	}

	_, err = l.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name))
	if err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	if l.log != nil {
		l.log.Info("database dropped", "database", name)
	}
	return nil
}

// ApplySchema executes the versioned DDL set inside one root transaction.
// Either every table and index exists afterwards, or none of the statements
// took effect.
func (l *Lifecycle) ApplySchema(ctx context.Context) error {
	return l.tm.WithTransaction(ctx, func(s *txn.Scope) error {
		for _, stmt := range ddl {
			if _, err := s.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := s.Exec(ctx,
			"INSERT INTO schema_version (version) VALUES ($1)", Version)
		return err
	})
}

// TeardownSchema enumerates all user tables in the public schema and drops
// them with cascade, inside one root transaction.
func (l *Lifecycle) TeardownSchema(ctx context.Context) error {
	return l.tm.WithTransaction(ctx, func(s *txn.Scope) error {
		rows, err := s.Query(ctx,
			`SELECT table_name FROM information_schema.tables
			 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`)
		if err != nil {
			return err
		}

		var tables []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			tables = append(tables, name)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, table := range tables {
			if _, err := s.Exec(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(table)+" CASCADE"); err != nil {
				return err
			}
		}
		return nil
	})
}
