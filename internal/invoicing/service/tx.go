package service

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "fakturo/pkg/platform/tx"
)

// StoreTx runs a unit of work. The SQL implementation opens a transaction
// and stores it in context so participating stores join it; the in-memory
// implementation just runs the function (memory stores are individually
// atomic and the coordinator already serializes per payment).
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlStoreTx struct {
	db *sql.DB
}

// NewSQLTx creates a StoreTx over a database handle.
func NewSQLTx(db *sql.DB) StoreTx {
	return &sqlStoreTx{db: db}
}

func (t *sqlStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type inMemoryStoreTx struct{}

func newInMemoryStoreTx() StoreTx {
	return inMemoryStoreTx{}
}

func (inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
