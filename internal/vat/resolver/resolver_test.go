package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	invmodels "fakturo/internal/invoicing/models"
	"fakturo/internal/vat/models"
	"fakturo/internal/vat/resolver"
	"fakturo/internal/vat/store/vatrate"
	"fakturo/internal/vat/validator"
)

type stubValidator struct {
	result *models.Validation
	err    error
	calls  int
}

func (s *stubValidator) Validate(_ context.Context, _ string) (*models.Validation, error) {
	s.calls++
	return s.result, s.err
}

type failingRates struct{}

func (failingRates) HasCountry(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func euRates() *vatrate.InMemory {
	return vatrate.NewInMemory(
		models.VatRate{Country: "SK", Standard: decimal.NewFromInt(20)},
		models.VatRate{Country: "DE", Standard: decimal.NewFromInt(19)},
	)
}

func companyBuyer(country, companyID, vatID string) *invmodels.Buyer {
	return &invmodels.Buyer{
		ID: 1,
		InvoiceAddress: &invmodels.Address{
			Type:      invmodels.AddressTypeInvoice,
			Country:   country,
			CompanyID: companyID,
			VatID:     vatID,
		},
	}
}

func TestResolve(t *testing.T) {
	validAnswer := &models.Validation{Valid: true}
	invalidAnswer := &models.Validation{Valid: false}

	tests := []struct {
		name           string
		buyer          *invmodels.Buyer
		validator      *stubValidator
		rates          resolver.RateStore
		defaultCountry string
		want           models.VatMode
		wantCalls      int
	}{
		{
			name:           "nil buyer is a consumer",
			buyer:          nil,
			validator:      &stubValidator{},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2C,
		},
		{
			name:           "no invoice address is a consumer",
			buyer:          &invmodels.Buyer{ID: 1},
			validator:      &stubValidator{},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2C,
		},
		{
			name:           "address without company id is a consumer",
			buyer:          companyBuyer("SK", "", "SK2020000000"),
			validator:      &stubValidator{},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2C,
		},
		{
			name:           "supplier country outside the rate table",
			buyer:          companyBuyer("US", "12-3456789", ""),
			validator:      &stubValidator{},
			rates:          euRates(),
			defaultCountry: "US",
			want:           models.VatModeB2BNonEurope,
		},
		{
			name:           "company without vat id",
			buyer:          companyBuyer("DE", "HRB 12345", ""),
			validator:      &stubValidator{result: validAnswer},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
		},
		{
			name:           "domestic company never hits the registry",
			buyer:          companyBuyer("SK", "36000000", "SK2020000000"),
			validator:      &stubValidator{result: validAnswer},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      0,
		},
		{
			name:           "domestic match is case-insensitive",
			buyer:          companyBuyer("sk", "36000000", "SK2020000000"),
			validator:      &stubValidator{result: validAnswer},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      0,
		},
		{
			name:           "foreign company with registry-confirmed vat id",
			buyer:          companyBuyer("DE", "HRB 12345", "DE811907980"),
			validator:      &stubValidator{result: validAnswer},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2BReverseCharge,
			wantCalls:      1,
		},
		{
			name:           "foreign company with rejected vat id",
			buyer:          companyBuyer("DE", "HRB 12345", "DE811907980"),
			validator:      &stubValidator{result: invalidAnswer},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      1,
		},
		{
			name:           "registry outage degrades to b2b",
			buyer:          companyBuyer("DE", "HRB 12345", "DE811907980"),
			validator:      &stubValidator{err: validator.ErrRegistryUnavailable},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      1,
		},
		{
			name:           "malformed vat id degrades to b2b",
			buyer:          companyBuyer("DE", "HRB 12345", "garbage"),
			validator:      &stubValidator{err: validator.ErrBadVatID},
			rates:          euRates(),
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      1,
		},
		{
			name:           "rate table failure degrades to b2b, not non-europe",
			buyer:          companyBuyer("DE", "HRB 12345", "DE811907980"),
			validator:      &stubValidator{result: validAnswer},
			rates:          failingRates{},
			defaultCountry: "SK",
			want:           models.VatModeB2B,
			wantCalls:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolver.New(tt.validator, tt.rates, tt.defaultCountry, nil, nil)
			got := r.Resolve(context.Background(), tt.buyer)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, tt.validator.calls, "registry call count")
		})
	}
}
