package consultation

import (
	"context"
	"sync"
	"time"

	"fakturo/internal/vat/models"
	"fakturo/pkg/platform/sentinel"
)

// InMemory implements the append-only consultation store for tests and
// single-instance setups.
type InMemory struct {
	mu     sync.RWMutex
	byNum  map[string]int
	rows   []models.Consultation
}

// NewInMemory creates an empty in-memory consultation store.
func NewInMemory() *InMemory {
	return &InMemory{byNum: make(map[string]int)}
}

// Add appends the consultation unless its consultation number was already
// recorded. The duplicate case is a silent idempotent skip: the registry
// replaying an identifier is expected, not an error.
func (s *InMemory) Add(_ context.Context, c *models.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNum[c.ConsultationNumber]; exists {
		return nil
	}
	s.rows = append(s.rows, *c)
	s.byNum[c.ConsultationNumber] = len(s.rows) - 1
	return nil
}

// FindLatestByVatID returns the youngest consultation for the VAT id with
// ValidatedAt at or after the cutoff, or sentinel.ErrNotFound.
func (s *InMemory) FindLatestByVatID(_ context.Context, vatID string, cutoff time.Time) (*models.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Consultation
	for i := range s.rows {
		r := s.rows[i]
		if r.VatID != vatID || r.ValidatedAt.Before(cutoff) {
			continue
		}
		if latest == nil || r.ValidatedAt.After(latest.ValidatedAt) {
			latest = &s.rows[i]
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *latest
	return &out, nil
}

// Count returns the number of stored rows, for test assertions.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
