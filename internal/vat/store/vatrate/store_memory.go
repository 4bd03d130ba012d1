package vatrate

import (
	"context"
	"strings"
	"sync"

	"fakturo/internal/vat/models"
	"fakturo/pkg/platform/sentinel"
)

// InMemory holds the per-country VAT-rate table in memory.
type InMemory struct {
	mu    sync.RWMutex
	rates map[string]models.VatRate
}

// NewInMemory creates an in-memory rate table, optionally pre-seeded.
func NewInMemory(seed ...models.VatRate) *InMemory {
	s := &InMemory{rates: make(map[string]models.VatRate)}
	for _, r := range seed {
		s.rates[strings.ToUpper(r.Country)] = r
	}
	return s
}

// Upsert sets the rate row for a country.
func (s *InMemory) Upsert(_ context.Context, rate models.VatRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[strings.ToUpper(rate.Country)] = rate
	return nil
}

// HasCountry reports whether the country has a rate entry. Absence means
// "non-EU" to the resolver.
func (s *InMemory) HasCountry(_ context.Context, country string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rates[strings.ToUpper(country)]
	return ok, nil
}

// FindByCountry returns the rate row or sentinel.ErrNotFound.
func (s *InMemory) FindByCountry(_ context.Context, country string) (*models.VatRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[strings.ToUpper(country)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := r
	return &out, nil
}
