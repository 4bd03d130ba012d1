package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceNumber reserves one slot in the monthly numbering sequence.
//
// Invariants:
//   - Number is globally unique; within the (year, month) of DeliveredAt the
//     numbers form a gap-free ascending sequence starting at 1.
//   - The row id is the ordering anchor: a backfilled row with an earlier
//     DeliveredAt still takes the next free slot of its month.
//   - Immutable after Number is set; rows are never deleted.
type InvoiceNumber struct {
	ID          int64
	DeliveredAt time.Time
	Number      string
	CreatedAt   time.Time
}

// PartySnapshot is an immutable copy of one party's identity as it was at
// invoice creation. Supplier snapshots come from configuration; buyer
// snapshots from the invoice address. Later config or address edits must
// not change issued invoices.
type PartySnapshot struct {
	Name      string
	Street    string
	City      string
	Zip       string
	Country   string
	CompanyID string
	TaxID     string
	VatID     string
}

// Invoice is the issued invoice record. Created exactly once per payment.
// CreatedDate tracks the date the invoice number was generated, not the
// wall clock of invoice creation, so pre-assigned numbers keep their issue
// date when the invoice row materializes later.
type Invoice struct {
	ID              string
	InvoiceNumberID int64
	Number          string
	Buyer           PartySnapshot
	Supplier        PartySnapshot
	CreatedDate     time.Time
	UpdatedDate     time.Time
	Items           []InvoiceLineItem
}

// InvoiceLineItem is one printed line. UnitPrice includes VAT;
// PriceWithoutVat is the per-unit base derived from the VAT rate.
type InvoiceLineItem struct {
	ID              string
	InvoiceID       string
	Text            string
	Count           int
	UnitPrice       decimal.Decimal
	PriceWithoutVat decimal.Decimal
	VatRate         decimal.Decimal
	Currency        string
}

// WithoutVat derives the per-unit price excluding VAT, rounded to cents.
func WithoutVat(unitPrice, vatRate decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(vatRate.Div(decimal.NewFromInt(100)))
	return unitPrice.DivRound(divisor, 2)
}
