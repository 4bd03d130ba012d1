// Package service hosts the invoice generation coordinator: the only code
// path that assigns numbers and creates invoices. Generation for one
// payment is serialized across all processes by a per-payment lock, and the
// whole operation is idempotent, so at-least-once triggers from the queue
// converge on exactly one invoice.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fakturo/internal/invoicing/eligibility"
	invmetrics "fakturo/internal/invoicing/metrics"
	"fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/notify"
	"fakturo/internal/invoicing/sequence"
	"fakturo/internal/platform/config"
	"fakturo/pkg/platform/lock"
)

// Expected generation outcomes that are not system failures.
var (
	// ErrPaymentNotInvoiceable: the payment is outside the invoiceable
	// rules right now. Callers record it and move on.
	ErrPaymentNotInvoiceable = errors.New("payment not invoiceable")
	// ErrMissingBuyerAddress: generation cannot proceed until the buyer
	// supplies an invoice address. Not retryable by itself.
	ErrMissingBuyerAddress = errors.New("buyer has no invoice address")
)

// PaymentStore reads payments and links invoicing artifacts to them.
// AttachNumber and LinkInvoice are set-once: a second link is a conflict.
type PaymentStore interface {
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	AttachNumber(ctx context.Context, paymentID, numberID int64) error
	LinkInvoice(ctx context.Context, paymentID int64, invoiceID string) error
}

// BuyerStore reads buyers with their invoice address.
type BuyerStore interface {
	FindByID(ctx context.Context, id int64) (*models.Buyer, error)
}

// InvoiceStore persists invoices with their line items.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
}

// Service coordinates invoice generation.
type Service struct {
	payments  PaymentStore
	buyers    BuyerStore
	invoices  InvoiceStore
	numbers   sequence.NumberStore
	sequencer *sequence.Sequencer
	rules     *eligibility.Evaluator
	locker    lock.Locker
	supplier  config.SupplierConfig
	cfg       config.InvoicingConfig

	notifier notify.Notifier
	tx       StoreTx
	log      *slog.Logger
	metrics  *invmetrics.Metrics
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the invoice-created notifier (hub, Kafka, or a fanout).
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTx sets the unit-of-work runner; production wires NewSQLTx.
func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *invmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the coordinator.
func NewService(
	payments PaymentStore,
	buyers BuyerStore,
	invoices InvoiceStore,
	numbers sequence.NumberStore,
	sequencer *sequence.Sequencer,
	rules *eligibility.Evaluator,
	locker lock.Locker,
	supplier config.SupplierConfig,
	cfg config.InvoicingConfig,
	opts ...Option,
) *Service {
	s := &Service{
		payments:  payments,
		buyers:    buyers,
		invoices:  invoices,
		numbers:   numbers,
		sequencer: sequencer,
		rules:     rules,
		locker:    locker,
		supplier:  supplier,
		cfg:       cfg,
		tx:        newInMemoryStoreTx(),
		tracer:    otel.Tracer("fakturo/invoicing"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func lockKey(paymentID int64) string {
	return fmt.Sprintf("payment:%d", paymentID)
}

// Generate creates the invoice for a payment, or returns the one that
// already exists. Safe to call any number of times from any state; the
// payment only ever moves forward through
// no-invoice → number-assigned → invoiced.
//
// Expected rejections are ErrPaymentNotInvoiceable and
// ErrMissingBuyerAddress; lock.ErrAcquireTimeout is transient and worth a
// retry.
func (s *Service) Generate(ctx context.Context, paymentID int64) (*models.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "invoicing.generate",
		trace.WithAttributes(attribute.Int64("payment.id", paymentID)))
	defer span.End()
	start := time.Now()

	lease, err := s.locker.Acquire(ctx, lockKey(paymentID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrAcquireTimeout) {
			s.metrics.IncLockTimeouts()
		}
		span.RecordError(err)
		return nil, fmt.Errorf("acquire generation lock for payment %d: %w", paymentID, err)
	}
	defer func() {
		if relErr := s.locker.Release(ctx, lease); relErr != nil && s.log != nil {
			s.log.WarnContext(ctx, "failed to release generation lock",
				"payment_id", paymentID, "error", relErr)
		}
	}()

	// Re-fetch under the lock; the trigger's copy may be stale.
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load payment %d: %w", paymentID, err)
	}

	if p.HasInvoice() {
		return s.invoices.FindByID(ctx, *p.InvoiceID)
	}

	buyer, err := s.buyers.FindByID(ctx, p.BuyerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load buyer %d: %w", p.BuyerID, err)
	}

	eligible := s.rules.IsInvoiceable(ctx, p, buyer, false, false)

	if !p.HasInvoiceNumber() && (eligible || (s.cfg.NumberAllPaid && p.IsPaid() && p.PaidAt != nil)) {
		number, err := s.sequencer.Next(ctx, p)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := s.payments.AttachNumber(ctx, p.ID, number.ID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("attach number to payment %d: %w", p.ID, err)
		}
		p.InvoiceNumberID = &number.ID
		s.metrics.IncNumbersIssued()
	}

	if !eligible || !p.HasInvoiceNumber() {
		s.metrics.IncRejectedTriggers()
		return nil, ErrPaymentNotInvoiceable
	}
	if !buyer.HasInvoiceAddress() {
		s.metrics.IncRejectedTriggers()
		return nil, ErrMissingBuyerAddress
	}

	number, err := s.numbers.FindByID(ctx, *p.InvoiceNumberID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load invoice number %d: %w", *p.InvoiceNumberID, err)
	}

	inv := s.buildInvoice(p, buyer, number)

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.invoices.Create(txCtx, inv); err != nil {
			return fmt.Errorf("create invoice for payment %d: %w", p.ID, err)
		}
		if err := s.payments.LinkInvoice(txCtx, p.ID, inv.ID); err != nil {
			return fmt.Errorf("link invoice to payment %d: %w", p.ID, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notifyCreated(ctx, p, inv)

	s.metrics.IncInvoicesGenerated()
	s.metrics.ObserveGenerationDuration(time.Since(start).Seconds())
	if s.log != nil {
		s.log.InfoContext(ctx, "invoice created",
			"payment_id", p.ID,
			"invoice_id", inv.ID,
			"number", inv.Number,
		)
	}
	return inv, nil
}

// notifyCreated emits the domain event. The invoice is already committed;
// a notification failure is logged, not propagated, and downstream
// consumers reconcile from storage.
func (s *Service) notifyCreated(ctx context.Context, p *models.Payment, inv *models.Invoice) {
	if s.notifier == nil {
		return
	}
	event := models.InvoiceCreated{
		EventID:   uuid.NewString(),
		PaymentID: p.ID,
		InvoiceID: inv.ID,
		Number:    inv.Number,
		CreatedAt: inv.CreatedDate,
	}
	if err := s.notifier.InvoiceCreated(ctx, event); err != nil && s.log != nil {
		s.log.ErrorContext(ctx, "invoice created notification failed",
			"payment_id", p.ID, "invoice_id", inv.ID, "error", err)
	}
}

// buildInvoice assembles the immutable invoice record. The created date is
// the date the number was generated, not the wall clock, so pre-assigned
// numbers keep their issue date. Buyer and supplier identities are copied
// as snapshots; later edits to either must not touch issued invoices.
func (s *Service) buildInvoice(p *models.Payment, buyer *models.Buyer, number *models.InvoiceNumber) *models.Invoice {
	addr := buyer.InvoiceAddress

	buyerName := addr.Name
	if buyerName == "" {
		buyerName = buyer.Name
	}

	inv := &models.Invoice{
		ID:              uuid.NewString(),
		InvoiceNumberID: number.ID,
		Number:          number.Number,
		Buyer: models.PartySnapshot{
			Name:      buyerName,
			Street:    addr.Street,
			City:      addr.City,
			Zip:       addr.Zip,
			Country:   addr.Country,
			CompanyID: addr.CompanyID,
			TaxID:     addr.TaxID,
			VatID:     addr.VatID,
		},
		Supplier: models.PartySnapshot{
			Name:      s.supplier.Name,
			Street:    s.supplier.Street,
			City:      s.supplier.City,
			Zip:       s.supplier.Zip,
			Country:   s.supplier.Country,
			CompanyID: s.supplier.CompanyID,
			TaxID:     s.supplier.TaxID,
			VatID:     s.supplier.VatID,
		},
		CreatedDate: number.CreatedAt,
		UpdatedDate: number.CreatedAt,
	}

	for _, item := range p.Items {
		inv.Items = append(inv.Items, models.InvoiceLineItem{
			ID:              uuid.NewString(),
			InvoiceID:       inv.ID,
			Text:            lineItemText(p, item),
			Count:           item.Count,
			UnitPrice:       item.UnitAmount,
			PriceWithoutVat: models.WithoutVat(item.UnitAmount, item.VatRate),
			VatRate:         item.VatRate,
			Currency:        p.Currency,
		})
	}
	return inv
}

// lineItemText annotates subscription purchases with the covered period.
func lineItemText(p *models.Payment, item models.PaymentItem) string {
	if p.SubscriptionStart == nil || p.SubscriptionEnd == nil {
		return item.Name
	}
	return fmt.Sprintf("%s (%s - %s)",
		item.Name,
		p.SubscriptionStart.Format("2006-01-02"),
		p.SubscriptionEnd.Format("2006-01-02"),
	)
}
