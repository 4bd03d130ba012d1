package sequence

import (
	"context"
	"sync"
	"time"

	"fakturo/internal/invoicing/models"
	"fakturo/pkg/platform/sentinel"
	"fakturo/pkg/requestcontext"
)

// InMemoryNumberStore implements NumberStore with a process-local slice.
// For tests and single-instance setups; production uses PostgresNumberStore.
type InMemoryNumberStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []models.InvoiceNumber
}

// NewInMemoryNumberStore creates an empty in-memory number store.
func NewInMemoryNumberStore() *InMemoryNumberStore {
	return &InMemoryNumberStore{}
}

// Issue reserves the next row id, counts earlier rows of the same calendar
// month and persists the formatted number, all under one mutex hold.
func (s *InMemoryNumberStore) Issue(ctx context.Context, deliveredAt time.Time) (*models.InvoiceNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	row := models.InvoiceNumber{
		ID:          s.nextID,
		DeliveredAt: deliveredAt,
		CreatedAt:   requestcontext.Now(ctx),
	}

	count := 0
	for _, r := range s.rows {
		if r.ID < row.ID && samePeriod(r.DeliveredAt, deliveredAt) {
			count++
		}
	}

	number, err := Format(deliveredAt, count+1)
	if err != nil {
		return nil, err
	}
	row.Number = number
	s.rows = append(s.rows, row)

	out := row
	return &out, nil
}

// FindByID returns the number row or sentinel.ErrNotFound.
func (s *InMemoryNumberStore) FindByID(_ context.Context, id int64) (*models.InvoiceNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.ID == id {
			out := r
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// All returns a copy of every issued row, for test assertions.
func (s *InMemoryNumberStore) All() []models.InvoiceNumber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.InvoiceNumber, len(s.rows))
	copy(out, s.rows)
	return out
}

func samePeriod(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
