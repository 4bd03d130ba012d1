package consultation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fakturo/internal/vat/models"
	"fakturo/pkg/platform/sentinel"
)

// Postgres persists the consultation audit trail. The table is append-only;
// this store deliberately has no update or delete methods.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed consultation store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Add inserts the consultation; a duplicate consultation number inserts
// nothing (ON CONFLICT DO NOTHING), keeping the audit trail free of replays.
func (s *Postgres) Add(ctx context.Context, c *models.Consultation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vat_consultations (id, vat_id, consultation_number, valid, validated_at, response)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (consultation_number) DO NOTHING
	`, c.ID, c.VatID, c.ConsultationNumber, c.Valid, c.ValidatedAt, []byte(c.Response))
	if err != nil {
		return fmt.Errorf("insert consultation %s: %w", c.ConsultationNumber, err)
	}
	return nil
}

// FindLatestByVatID returns the youngest consultation for the VAT id with
// validated_at at or after the cutoff, or sentinel.ErrNotFound.
func (s *Postgres) FindLatestByVatID(ctx context.Context, vatID string, cutoff time.Time) (*models.Consultation, error) {
	var c models.Consultation
	var response []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vat_id, consultation_number, valid, validated_at, response
		FROM vat_consultations
		WHERE vat_id = $1 AND validated_at >= $2
		ORDER BY validated_at DESC
		LIMIT 1
	`, vatID, cutoff).Scan(&c.ID, &c.VatID, &c.ConsultationNumber, &c.Valid, &c.ValidatedAt, &response)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find consultation for %s: %w", vatID, err)
	}
	c.Response = response
	return &c, nil
}
