package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fakturo/internal/invoicing/models"
)

func TestWithoutVat(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice string
		vatRate   string
		want      string
	}{
		{"twenty percent", "12.00", "20", "10"},
		{"nineteen percent", "11.90", "19", "10"},
		{"zero rate passes through", "15.00", "0", "15"},
		{"rounds to cents", "9.99", "20", "8.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.WithoutVat(decimal.RequireFromString(tt.unitPrice), decimal.RequireFromString(tt.vatRate))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"WithoutVat(%s, %s%%) = %s, want %s", tt.unitPrice, tt.vatRate, got, tt.want)
		})
	}
}

func TestDeliveryDate(t *testing.T) {
	paidAt := time.Date(2026, time.May, 2, 10, 0, 0, 0, time.UTC)
	earlier := time.Date(2026, time.April, 28, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

	p := &models.Payment{PaidAt: &paidAt}
	assert.Equal(t, paidAt, p.DeliveryDate(), "no subscription period falls back to the paid date")

	p.SubscriptionStart = &earlier
	assert.Equal(t, earlier, p.DeliveryDate(), "earlier subscription start wins")

	p.SubscriptionStart = &later
	assert.Equal(t, paidAt, p.DeliveryDate(), "later subscription start loses to the paid date")
}
