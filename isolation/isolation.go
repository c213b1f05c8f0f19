// Package isolation allocates disposable, test-case-scoped data sets. Every
// synthetic entity is tagged with its test case id so release can delete
// exactly the rows one test case owns. A data set belongs to exactly one
// live test case; allocation for an id that already holds one is rejected.
package isolation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/qa-go/qaf/dbpg/backup"
	"github.com/qa-go/qaf/dbpg/schema"
	"github.com/qa-go/qaf/dbpg/txn"
	"github.com/qa-go/qaf/helpers"
	"github.com/qa-go/qaf/logger"
)

// ErrActiveDataSet is returned when a test case already holds a live data
// set.
var ErrActiveDataSet = errors.New("isolation: test case already holds a data set")

// psql builds queries with PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Requirements states how many entities of each kind a test case needs.
type Requirements struct {
	Users      int
	Categories int
	Products   int
}

// DataSet is the handle to one allocated set of tagged entities. Entities
// maps table name to the synthetic ids inserted there.
type DataSet struct {
	TestCaseID string
	CreatedAt  time.Time
	Entities   map[string][]string
	Backup     backup.Handle
}

// Manager allocates and releases isolated data sets through the transaction
// manager. Safe for concurrent use by independent test cases: the transaction
// manager and its connection are not thread-safe, so all allocate/release
// work is serialized over them.
type Manager struct {
	tm  *txn.Manager
	log logger.Logger

	// txMu serializes every use of tm: its scope stack tolerates only one
	// goroutine at a time.
	txMu sync.Mutex

	mu     sync.Mutex
	active map[string]*DataSet
}

// NewManager creates an isolation manager over tm.
func NewManager(tm *txn.Manager, log logger.Logger) *Manager {
	return &Manager{
		tm:     tm,
		log:    log,
		active: make(map[string]*DataSet),
	}
}

// Allocate inserts the requested entities inside a single root transaction
// and returns the data set handle. Any insertion failure rolls the whole
// allocation back: no partial data set is ever visible or returned.
func (m *Manager) Allocate(ctx context.Context, testCaseID string, req Requirements) (*DataSet, error) {
	if testCaseID == "" {
		return nil, errors.New("isolation: test case id is required")
	}

	ds := &DataSet{
		TestCaseID: testCaseID,
		CreatedAt:  time.Now().UTC(),
		Entities:   make(map[string][]string),
	}

	m.mu.Lock()
	if _, ok := m.active[testCaseID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrActiveDataSet, testCaseID)
	}
	m.active[testCaseID] = ds
	m.mu.Unlock()

	err := m.withTx(ctx, func(s *txn.Scope) error {
		// Categories first: products may reference them.
		for i := 0; i < req.Categories; i++ {
			id := helpers.CreateUUID()
			if err := execInsert(ctx, s, psql.Insert("test_categories").
				Columns("id", "name", "test_case_id").
				Values(id, fmt.Sprintf("category-%d", i+1), testCaseID)); err != nil {
				return err
			}
			ds.Entities["test_categories"] = append(ds.Entities["test_categories"], id)
		}

		for i := 0; i < req.Users; i++ {
			id := helpers.CreateUUID()
			if err := execInsert(ctx, s, psql.Insert("test_users").
				Columns("id", "name", "email", "test_case_id").
				Values(id, fmt.Sprintf("user-%d", i+1),
					fmt.Sprintf("user-%d-%s@test.local", i+1, testCaseID), testCaseID)); err != nil {
				return err
			}
			ds.Entities["test_users"] = append(ds.Entities["test_users"], id)
		}

		for i := 0; i < req.Products; i++ {
			id := helpers.CreateUUID()
			var categoryID any
			if ids := ds.Entities["test_categories"]; len(ids) > 0 {
				categoryID = ids[i%len(ids)]
			}
			if err := execInsert(ctx, s, psql.Insert("test_products").
				Columns("id", "name", "price_cents", "category_id", "test_case_id").
				Values(id, fmt.Sprintf("product-%d", i+1), int64((i+1)*1000), categoryID, testCaseID)); err != nil {
				return err
			}
			ds.Entities["test_products"] = append(ds.Entities["test_products"], id)
		}
		return nil
	})
	if err != nil {
		m.mu.Lock()
		delete(m.active, testCaseID)
		m.mu.Unlock()
		return nil, err
	}

	m.log.Ctx(ctx).Info("data set allocated",
		"test_case_id", testCaseID,
		"users", req.Users, "categories", req.Categories, "products", req.Products)
	return ds, nil
}

// AttachBackup associates a backup handle with the live data set for
// testCaseID, if any.
func (m *Manager) AttachBackup(testCaseID string, h backup.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ds, ok := m.active[testCaseID]; ok {
		ds.Backup = h
	}
}

// Release deletes every row tagged with testCaseID inside its own root
// transaction. Idempotent: releasing an id without a live data set is a
// no-op.
func (m *Manager) Release(ctx context.Context, testCaseID string) error {
	m.mu.Lock()
	_, ok := m.active[testCaseID]
	m.mu.Unlock()
	if !ok {
		m.log.Ctx(ctx).Debug("release without live data set", "test_case_id", testCaseID)
		return nil
	}

	err := m.withTx(ctx, func(s *txn.Scope) error {
		// Dependents first.
		tables := schema.Tables()
		for i := len(tables) - 1; i >= 0; i-- {
			query, args, err := psql.Delete(tables[i]).
				Where(sq.Eq{"test_case_id": testCaseID}).ToSql()
			if err != nil {
				return err
			}
			if _, err := s.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.active, testCaseID)
	m.mu.Unlock()

	m.log.Ctx(ctx).Info("data set released", "test_case_id", testCaseID)
	return nil
}

// withTx runs fn in a root transaction while holding the transaction mutex,
// released on every exit path including panics.
func (m *Manager) withTx(ctx context.Context, fn func(*txn.Scope) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.tm.WithTransaction(ctx, fn)
}

func execInsert(ctx context.Context, s *txn.Scope, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = s.Exec(ctx, query, args...)
	return err
}
