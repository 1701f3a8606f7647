package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Manager wraps transactional boundaries for multi-step repository work.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type txKey struct{}

// Executor is the subset of *sql.DB and *sql.Tx repositories need.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLManager runs fn inside a database transaction carried on the context.
// Nested calls join the outer transaction.
type SQLManager struct {
	db *sql.DB
}

func NewSQLManager(db *sql.DB) *SQLManager {
	return &SQLManager{db: db}
}

func (m *SQLManager) Within(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// From returns the transaction on ctx, or db when there is none.
func From(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
