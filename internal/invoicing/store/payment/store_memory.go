package payment

import (
	"context"
	"sync"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
)

// InMemory implements the payment store for tests. Payments are owned by an
// external system; Put seeds them and the service only reads and links.
type InMemory struct {
	mu       sync.RWMutex
	payments map[int64]models.Payment
}

// NewInMemory creates an empty in-memory payment store.
func NewInMemory() *InMemory {
	return &InMemory{payments: make(map[int64]models.Payment)}
}

// Put seeds or replaces a payment row.
func (s *InMemory) Put(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = clone(p)
	return nil
}

// FindByID returns a copy of the payment or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&p)
	return &out, nil
}

// AttachNumber links the invoice number once; a second attempt is a
// conflict.
func (s *InMemory) AttachNumber(_ context.Context, paymentID, numberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.InvoiceNumberID != nil {
		return sentinel.ErrConflict
	}
	p.InvoiceNumberID = &numberID
	s.payments[paymentID] = p
	return nil
}

// LinkInvoice links the invoice once; a second attempt is a conflict.
func (s *InMemory) LinkInvoice(_ context.Context, paymentID int64, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.InvoiceID != nil {
		return sentinel.ErrConflict
	}
	p.InvoiceID = &invoiceID
	s.payments[paymentID] = p
	return nil
}

func clone(p *models.Payment) models.Payment {
	out := *p
	if p.PaidAt != nil {
		t := *p.PaidAt
		out.PaidAt = &t
	}
	if p.SubscriptionStart != nil {
		t := *p.SubscriptionStart
		out.SubscriptionStart = &t
	}
	if p.SubscriptionEnd != nil {
		t := *p.SubscriptionEnd
		out.SubscriptionEnd = &t
	}
	if p.InvoiceNumberID != nil {
		id := *p.InvoiceNumberID
		out.InvoiceNumberID = &id
	}
	if p.InvoiceID != nil {
		id := *p.InvoiceID
		out.InvoiceID = &id
	}
	out.Items = append([]models.PaymentItem(nil), p.Items...)
	return out
}
