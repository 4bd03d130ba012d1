package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment. Payments are owned by
// the payments system; invoicing only reads the status and links the invoice.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFail   PaymentStatus = "fail"
	PaymentStatusRefund PaymentStatus = "refund"
)

// Payment is the invoicing view of a payment row.
//
// Invariants:
//   - At most one InvoiceNumber and at most one Invoice per payment, ever.
//   - A paid payment carries a non-nil PaidAt; a paid payment without one is
//     a data-integrity anomaly that blocks invoicing (logged, not fatal).
//   - Country, when set, pins the payment to the buyer country it was
//     created under; a later address change must not move it.
type Payment struct {
	ID             int64
	BuyerID        int64
	Status         PaymentStatus
	PaidAt         *time.Time
	Currency       string
	Amount         decimal.Decimal
	Country        string
	NotInvoiceable bool

	// Optional linked subscription period.
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time

	InvoiceNumberID *int64
	InvoiceID       *string

	Items []PaymentItem
}

// PaymentItem is one purchasable line on a payment. UnitAmount includes VAT.
type PaymentItem struct {
	Name       string
	Count      int
	UnitAmount decimal.Decimal
	VatRate    decimal.Decimal
}

func (p *Payment) IsPaid() bool {
	return p.Status == PaymentStatusPaid
}

func (p *Payment) HasInvoiceNumber() bool {
	return p.InvoiceNumberID != nil
}

func (p *Payment) HasInvoice() bool {
	return p.InvoiceID != nil
}

// DeliveryDate is the fiscal date that places the payment in a numbering
// period: the earlier of the subscription period start and the paid date.
// Callers must ensure PaidAt is set.
func (p *Payment) DeliveryDate() time.Time {
	paidAt := *p.PaidAt
	if p.SubscriptionStart != nil && p.SubscriptionStart.Before(paidAt) {
		return *p.SubscriptionStart
	}
	return paidAt
}
