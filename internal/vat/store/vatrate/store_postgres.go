package vatrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fakturo/internal/vat/models"
	"fakturo/pkg/platform/sentinel"
)

// Postgres reads the per-country VAT-rate table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed rate table.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// HasCountry reports whether the country has a rate entry.
func (s *Postgres) HasCountry(ctx context.Context, country string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM vat_rates WHERE country = $1)
	`, strings.ToUpper(country)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vat rate for %s: %w", country, err)
	}
	return exists, nil
}

// FindByCountry returns the rate row or sentinel.ErrNotFound.
func (s *Postgres) FindByCountry(ctx context.Context, country string) (*models.VatRate, error) {
	var r models.VatRate
	err := s.db.QueryRowContext(ctx, `
		SELECT country, standard_rate FROM vat_rates WHERE country = $1
	`, strings.ToUpper(country)).Scan(&r.Country, &r.Standard)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find vat rate for %s: %w", country, err)
	}
	return &r, nil
}
