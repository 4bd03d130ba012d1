package invoice

import (
	"context"
	"sync"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
)

// InMemory implements the invoice store for tests.
type InMemory struct {
	mu       sync.RWMutex
	invoices map[string]models.Invoice
}

// NewInMemory creates an empty in-memory invoice store.
func NewInMemory() *InMemory {
	return &InMemory{invoices: make(map[string]models.Invoice)}
}

// Create stores the invoice with its items. A duplicate id is a conflict.
func (s *InMemory) Create(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.ID]; exists {
		return sentinel.ErrConflict
	}
	s.invoices[inv.ID] = clone(inv)
	return nil
}

// FindByID returns a copy of the invoice or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&inv)
	return &out, nil
}

// Count returns the number of stored invoices, for test assertions.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}

func clone(inv *models.Invoice) models.Invoice {
	out := *inv
	out.Items = append([]models.InvoiceLineItem(nil), inv.Items...)
	return out
}
