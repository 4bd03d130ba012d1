package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
	txcontext "fakturo/pkg/platform/tx"
)

// Postgres implements the invoice store on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed invoice store.
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

// Create inserts the invoice header and all line items. Callers run it
// inside the coordinator's transaction so invoice and payment link commit
// together.
func (s *Postgres) Create(ctx context.Context, inv *models.Invoice) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO invoices (
			id, invoice_number_id, number,
			buyer_name, buyer_street, buyer_city, buyer_zip, buyer_country,
			buyer_company_id, buyer_tax_id, buyer_vat_id,
			supplier_name, supplier_street, supplier_city, supplier_zip, supplier_country,
			supplier_company_id, supplier_tax_id, supplier_vat_id,
			created_date, updated_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		inv.ID, inv.InvoiceNumberID, inv.Number,
		inv.Buyer.Name, inv.Buyer.Street, inv.Buyer.City, inv.Buyer.Zip, inv.Buyer.Country,
		inv.Buyer.CompanyID, inv.Buyer.TaxID, inv.Buyer.VatID,
		inv.Supplier.Name, inv.Supplier.Street, inv.Supplier.City, inv.Supplier.Zip, inv.Supplier.Country,
		inv.Supplier.CompanyID, inv.Supplier.TaxID, inv.Supplier.VatID,
		inv.CreatedDate, inv.UpdatedDate,
	)
	if err != nil {
		return fmt.Errorf("insert invoice %s: %w", inv.ID, err)
	}

	for _, item := range inv.Items {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO invoice_line_items (
				id, invoice_id, text, count, unit_price, price_without_vat, vat_rate, currency
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, inv.ID, item.Text, item.Count, item.UnitPrice, item.PriceWithoutVat, item.VatRate, item.Currency)
		if err != nil {
			return fmt.Errorf("insert invoice line item: %w", err)
		}
	}
	return nil
}

// ReplaceItems regenerates all line items of an invoice as one batch
// (delete-then-insert), used when an issued invoice's items are corrected.
// The header keeps its number and snapshots; only updated_date moves.
func (s *Postgres) ReplaceItems(ctx context.Context, invoiceID string, items []models.InvoiceLineItem) error {
	if _, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM invoice_line_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("clear invoice items %s: %w", invoiceID, err)
	}
	for _, item := range items {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO invoice_line_items (
				id, invoice_id, text, count, unit_price, price_without_vat, vat_rate, currency
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, item.ID, invoiceID, item.Text, item.Count, item.UnitPrice, item.PriceWithoutVat, item.VatRate, item.Currency)
		if err != nil {
			return fmt.Errorf("insert invoice line item: %w", err)
		}
	}
	if _, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE invoices SET updated_date = now() WHERE id = $1`, invoiceID); err != nil {
		return fmt.Errorf("touch invoice %s: %w", invoiceID, err)
	}
	return nil
}

// FindByID loads the invoice with its line items.
func (s *Postgres) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, invoice_number_id, number,
		       buyer_name, buyer_street, buyer_city, buyer_zip, buyer_country,
		       buyer_company_id, buyer_tax_id, buyer_vat_id,
		       supplier_name, supplier_street, supplier_city, supplier_zip, supplier_country,
		       supplier_company_id, supplier_tax_id, supplier_vat_id,
		       created_date, updated_date
		FROM invoices
		WHERE id = $1
	`, id).Scan(
		&inv.ID, &inv.InvoiceNumberID, &inv.Number,
		&inv.Buyer.Name, &inv.Buyer.Street, &inv.Buyer.City, &inv.Buyer.Zip, &inv.Buyer.Country,
		&inv.Buyer.CompanyID, &inv.Buyer.TaxID, &inv.Buyer.VatID,
		&inv.Supplier.Name, &inv.Supplier.Street, &inv.Supplier.City, &inv.Supplier.Zip, &inv.Supplier.Country,
		&inv.Supplier.CompanyID, &inv.Supplier.TaxID, &inv.Supplier.VatID,
		&inv.CreatedDate, &inv.UpdatedDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice %s: %w", id, err)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, invoice_id, text, count, unit_price, price_without_vat, vat_rate, currency
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load invoice items %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.InvoiceLineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Text, &item.Count,
			&item.UnitPrice, &item.PriceWithoutVat, &item.VatRate, &item.Currency); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice items: %w", err)
	}
	return &inv, nil
}
