package models

import "time"

// InvoiceCreated is emitted exactly once when an invoice row materializes.
// Consumed in-process (e.g. to kick off rendering) and published to the
// event topic for external systems.
type InvoiceCreated struct {
	EventID   string    `json:"event_id"`
	PaymentID int64     `json:"payment_id"`
	InvoiceID string    `json:"invoice_id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}
