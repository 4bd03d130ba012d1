package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
	txcontext "fakturo/pkg/platform/tx"
)

// PostgresNumberStore implements NumberStore on PostgreSQL.
type PostgresNumberStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed number store.
func NewPostgres(db *sql.DB) *PostgresNumberStore {
	return &PostgresNumberStore{db: db}
}

// Issue runs the insert-then-count unit inside one transaction. When the
// context already carries a transaction (the coordinator's unit of work),
// that transaction is joined instead of opening a nested one.
func (s *PostgresNumberStore) Issue(ctx context.Context, deliveredAt time.Time) (*models.InvoiceNumber, error) {
	if outer, ok := txcontext.From(ctx); ok {
		return s.issue(ctx, outer, deliveredAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin issue tx: %w", err)
	}
	defer tx.Rollback()

	row, err := s.issue(ctx, tx, deliveredAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issue tx: %w", err)
	}
	return row, nil
}

// advisoryNamespace separates numbering locks from any other advisory
// locks on the same database.
const advisoryNamespace = 0x696E766E // "invn"

func (s *PostgresNumberStore) issue(ctx context.Context, tx *sql.Tx, deliveredAt time.Time) (*models.InvoiceNumber, error) {
	row := models.InvoiceNumber{DeliveredAt: deliveredAt}

	// Serialize issuance per calendar month. Without this, a concurrent
	// transaction's count would not see rows that are inserted but not yet
	// committed and the same sequence slot would be handed out twice. The
	// lock is transaction-scoped and drops on commit or rollback.
	period := deliveredAt.Year()*100 + int(deliveredAt.Month())
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock($1, $2)`, advisoryNamespace, period); err != nil {
		return nil, fmt.Errorf("lock numbering period: %w", err)
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO invoice_numbers (delivered_at)
		VALUES ($1)
		RETURNING id, created_at
	`, deliveredAt).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reserve invoice number row: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM invoice_numbers
		WHERE id < $1
		  AND date_trunc('month', delivered_at) = date_trunc('month', $2::timestamptz)
	`, row.ID, deliveredAt).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count period rows: %w", err)
	}

	number, err := Format(deliveredAt, count+1)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE invoice_numbers SET number = $1 WHERE id = $2
	`, number, row.ID); err != nil {
		return nil, fmt.Errorf("persist invoice number: %w", err)
	}

	row.Number = number
	return &row, nil
}

// FindByID returns the number row or sentinel.ErrNotFound.
func (s *PostgresNumberStore) FindByID(ctx context.Context, id int64) (*models.InvoiceNumber, error) {
	var row models.InvoiceNumber
	var number sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, delivered_at, number, created_at
		FROM invoice_numbers
		WHERE id = $1
	`, id).Scan(&row.ID, &row.DeliveredAt, &number, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice number %d: %w", id, err)
	}
	row.Number = number.String
	return &row, nil
}
