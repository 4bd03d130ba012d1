package sequence

import (
	"context"
	"fmt"
	"log/slog"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
)

// Sequencer assigns one invoice number per payment, scoped to the calendar
// month of the payment's delivery date.
type Sequencer struct {
	numbers NumberStore
	log     *slog.Logger
}

// NewSequencer builds a sequencer over the given store.
func NewSequencer(numbers NumberStore, log *slog.Logger) *Sequencer {
	return &Sequencer{numbers: numbers, log: log}
}

// Next issues the number for the payment's delivery date: the earlier of
// the subscription period start and the paid date. The caller owns the
// at-most-one-number-per-payment invariant (it runs under the per-payment
// generation lock and checks the existing link first).
func (s *Sequencer) Next(ctx context.Context, p *models.Payment) (*models.InvoiceNumber, error) {
	if p == nil || p.PaidAt == nil {
		return nil, fmt.Errorf("payment has no paid date: %w", sentinel.ErrInvalidState)
	}

	deliveredAt := p.DeliveryDate()
	row, err := s.numbers.Issue(ctx, deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("issue number for payment %d: %w", p.ID, err)
	}

	if s.log != nil {
		s.log.InfoContext(ctx, "invoice number issued",
			"payment_id", p.ID,
			"number", row.Number,
			"delivered_at", deliveredAt,
		)
	}
	return row, nil
}
