package txn

import "errors"

var (
	// ErrScopeOrder is returned when scopes are closed out of LIFO order,
	// e.g. a parent scope closing while its child is still open.
	ErrScopeOrder = errors.New("transaction scopes must close in LIFO order")
	// ErrScopeClosed is returned when a statement is executed through a scope
	// that has already been committed or rolled back.
	ErrScopeClosed = errors.New("transaction scope already closed")
)
