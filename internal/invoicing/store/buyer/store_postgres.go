package buyer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
)

// Postgres implements the buyer store on PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed buyer store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// FindByID loads the buyer and, when present, their invoice-typed address.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Buyer, error) {
	var b models.Buyer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, invoice_opt_out, invoicing_disabled
		FROM buyers
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.InvoiceOptOut, &b.InvoicingDisabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find buyer %d: %w", id, err)
	}

	var addr models.Address
	var companyID, taxID, vatID sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, type, name, street, city, zip, country,
		       company_id, tax_id, vat_id
		FROM addresses
		WHERE buyer_id = $1 AND type = $2
		ORDER BY id DESC
		LIMIT 1
	`, id, models.AddressTypeInvoice).Scan(&addr.ID, &addr.BuyerID, &addr.Type,
		&addr.Name, &addr.Street, &addr.City, &addr.Zip, &addr.Country,
		&companyID, &taxID, &vatID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No invoice address on file yet; a legitimate state.
	case err != nil:
		return nil, fmt.Errorf("find invoice address for buyer %d: %w", id, err)
	default:
		addr.CompanyID = companyID.String
		addr.TaxID = taxID.String
		addr.VatID = vatID.String
		b.InvoiceAddress = &addr
	}
	return &b, nil
}
