// Package resolver classifies buyers into VAT modes. Resolution runs in the
// payment-creation pipeline and must never stall or fail it: every
// degradation collapses to the conservative B2B classification.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	invmodels "fakturo/internal/invoicing/models"
	vatmetrics "fakturo/internal/vat/metrics"
	"fakturo/internal/vat/models"
)

// VatValidator is the registry-check capability the resolver consumes.
type VatValidator interface {
	Validate(ctx context.Context, vatID string) (*models.Validation, error)
}

// RateStore answers whether a country participates in the VAT-rate table.
type RateStore interface {
	HasCountry(ctx context.Context, country string) (bool, error)
}

// Resolver combines buyer address, the VAT-rate table, and the external
// validator into one of the four VAT modes.
type Resolver struct {
	validator      VatValidator
	rates          RateStore
	defaultCountry string
	log            *slog.Logger
	metrics        *vatmetrics.Metrics
}

// New builds a resolver. defaultCountry is the supplier's home country.
func New(validator VatValidator, rates RateStore, defaultCountry string, log *slog.Logger, metrics *vatmetrics.Metrics) *Resolver {
	return &Resolver{
		validator:      validator,
		rates:          rates,
		defaultCountry: defaultCountry,
		log:            log,
		metrics:        metrics,
	}
}

// Resolve classifies the buyer. Evaluated in this exact order, first match
// wins:
//
//  1. no invoice address or no company id → B2C
//  2. the supplier's own default country has no VAT-rate entry →
//     B2BNonEurope (the whole deployment sits outside the VAT union)
//  3. company id but no VAT id → B2B
//  4. buyer country unset or same as the default country → B2B
//  5. registry affirms the VAT id → B2BReverseCharge; anything else
//     (invalid, or the validator failed) → B2B
//
// Never returns an error: validator and store failures are logged and
// degrade to B2B.
func (r *Resolver) Resolve(ctx context.Context, buyer *invmodels.Buyer) models.VatMode {
	mode := r.resolve(ctx, buyer)
	r.metrics.IncResolvedMode(string(mode))
	return mode
}

func (r *Resolver) resolve(ctx context.Context, buyer *invmodels.Buyer) models.VatMode {
	if buyer == nil || buyer.InvoiceAddress == nil || buyer.InvoiceAddress.CompanyID == "" {
		return models.VatModeB2C
	}
	addr := buyer.InvoiceAddress

	inUnion, err := r.rates.HasCountry(ctx, r.defaultCountry)
	if err != nil {
		// An infrastructure error is not evidence of absence; classify
		// conservatively instead of declaring the deployment non-EU.
		if r.log != nil {
			r.log.WarnContext(ctx, "vat rate lookup failed, defaulting to b2b",
				"country", r.defaultCountry, "error", err)
		}
		return models.VatModeB2B
	}
	if !inUnion {
		return models.VatModeB2BNonEurope
	}

	if addr.VatID == "" {
		return models.VatModeB2B
	}
	if addr.Country == "" || strings.EqualFold(addr.Country, r.defaultCountry) {
		return models.VatModeB2B
	}

	validation, err := r.validator.Validate(ctx, addr.VatID)
	if err != nil {
		// Could not confirm; log and fall back, never re-throw.
		if r.log != nil {
			r.log.WarnContext(ctx, "vat id validation failed, defaulting to b2b",
				"buyer_id", buyer.ID, "vat_id", addr.VatID, "error", err)
		}
		return models.VatModeB2B
	}
	if validation.Valid {
		return models.VatModeB2BReverseCharge
	}
	return models.VatModeB2B
}
