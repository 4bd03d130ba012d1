// Package eligibility decides whether a payment may receive an invoice (and
// an invoice number) right now. The evaluator is read-only and safe to call
// repeatedly and concurrently; the coordinator re-evaluates it under the
// generation lock.
package eligibility

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fakturo/internal/invoicing/models"
	"fakturo/internal/platform/config"
	"fakturo/pkg/requestcontext"
)

// Evaluator applies the invoiceable-period rules from configuration.
type Evaluator struct {
	windowDays int
	windowMode string
	log        *slog.Logger
}

// New builds an evaluator from the invoicing configuration.
func New(cfg config.InvoicingConfig, log *slog.Logger) *Evaluator {
	mode := cfg.WindowMode
	if mode != config.WindowFromMonthEnd {
		mode = config.WindowFromPaidDate
	}
	return &Evaluator{
		windowDays: cfg.WindowDays,
		windowMode: mode,
		log:        log,
	}
}

// IsInvoiceable reports whether the payment can be invoiced at the
// request-scoped now. All checks must pass:
//
//  1. payment is paid and carries a paid timestamp
//  2. the buyer has not opted out and invoicing is not administratively
//     disabled for them (skipped with ignoreOptOut)
//  3. no per-payment override marks it not invoiceable
//  4. the paid date is still inside the configured window (inclusive)
//  5. with requireAddress, an invoice-typed address is on file
//  6. a country assigned to the payment matches the invoice-address country
func (e *Evaluator) IsInvoiceable(ctx context.Context, p *models.Payment, buyer *models.Buyer, ignoreOptOut, requireAddress bool) bool {
	if p == nil || !p.IsPaid() {
		return false
	}
	if p.PaidAt == nil {
		// Paid without a timestamp is recoverable bad data, not a crash.
		if e.log != nil {
			e.log.WarnContext(ctx, "paid payment without paid_at, skipping invoicing",
				"payment_id", p.ID,
			)
		}
		return false
	}
	if !ignoreOptOut && buyer != nil && (buyer.InvoiceOptOut || buyer.InvoicingDisabled) {
		return false
	}
	if p.NotInvoiceable {
		return false
	}
	if requestcontext.Now(ctx).After(e.Deadline(*p.PaidAt)) {
		return false
	}
	if requireAddress && !buyer.HasInvoiceAddress() {
		return false
	}
	if p.Country != "" && buyer.HasInvoiceAddress() &&
		!strings.EqualFold(p.Country, buyer.InvoiceAddress.Country) {
		return false
	}
	return true
}

// Deadline is the last instant the payment is still invoiceable: N days
// after the paid date, or N days after the end of the paid date's month.
func (e *Evaluator) Deadline(paidAt time.Time) time.Time {
	base := paidAt
	if e.windowMode == config.WindowFromMonthEnd {
		base = endOfMonth(paidAt)
	}
	return base.AddDate(0, 0, e.windowDays)
}

// endOfMonth is the last second of the paid date's calendar month.
func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNext.Add(-time.Second)
}
