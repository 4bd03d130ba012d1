package buyer

import (
	"context"
	"sync"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
)

// InMemory implements the buyer store for tests. Buyers and addresses are
// owned by the accounts system; invoicing only reads them.
type InMemory struct {
	mu     sync.RWMutex
	buyers map[int64]models.Buyer
}

// NewInMemory creates an empty in-memory buyer store.
func NewInMemory() *InMemory {
	return &InMemory{buyers: make(map[int64]models.Buyer)}
}

// Put seeds or replaces a buyer.
func (s *InMemory) Put(_ context.Context, b *models.Buyer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *b
	if b.InvoiceAddress != nil {
		addr := *b.InvoiceAddress
		out.InvoiceAddress = &addr
	}
	s.buyers[b.ID] = out
	return nil
}

// FindByID returns a copy of the buyer with their invoice address, or
// sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buyers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := b
	if b.InvoiceAddress != nil {
		addr := *b.InvoiceAddress
		out.InvoiceAddress = &addr
	}
	return &out, nil
}
