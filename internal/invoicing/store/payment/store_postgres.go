package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
	txcontext "fakturo/pkg/platform/tx"
)

// Postgres implements the payment store on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed payment store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// FindByID loads the payment row with its items.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	var country sql.NullString
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, buyer_id, status, paid_at, currency, amount, country,
		       not_invoiceable, subscription_start, subscription_end,
		       invoice_number_id, invoice_id
		FROM payments
		WHERE id = $1
	`, id).Scan(&p.ID, &p.BuyerID, &p.Status, &p.PaidAt, &p.Currency, &p.Amount,
		&country, &p.NotInvoiceable, &p.SubscriptionStart, &p.SubscriptionEnd,
		&p.InvoiceNumberID, &p.InvoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %d: %w", id, err)
	}
	p.Country = country.String

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT name, count, unit_amount, vat_rate
		FROM payment_items
		WHERE payment_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load payment items %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.PaymentItem
		if err := rows.Scan(&item.Name, &item.Count, &item.UnitAmount, &item.VatRate); err != nil {
			return nil, fmt.Errorf("scan payment item: %w", err)
		}
		p.Items = append(p.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment items: %w", err)
	}
	return &p, nil
}

// AttachNumber links the invoice number, guarded so a payment can never
// acquire a second one.
func (s *Postgres) AttachNumber(ctx context.Context, paymentID, numberID int64) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET invoice_number_id = $1
		WHERE id = $2 AND invoice_number_id IS NULL
	`, numberID, paymentID)
	if err != nil {
		return fmt.Errorf("attach number to payment %d: %w", paymentID, err)
	}
	return s.requireOneRow(ctx, res, paymentID)
}

// LinkInvoice links the invoice, guarded the same way.
func (s *Postgres) LinkInvoice(ctx context.Context, paymentID int64, invoiceID string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE payments SET invoice_id = $1
		WHERE id = $2 AND invoice_id IS NULL
	`, invoiceID, paymentID)
	if err != nil {
		return fmt.Errorf("link invoice to payment %d: %w", paymentID, err)
	}
	return s.requireOneRow(ctx, res, paymentID)
}

func (s *Postgres) requireOneRow(ctx context.Context, res sql.Result, paymentID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, paymentID).Scan(&exists); err != nil {
		return fmt.Errorf("check payment %d: %w", paymentID, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}
