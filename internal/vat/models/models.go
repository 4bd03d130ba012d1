package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// VatMode classifies a buyer for VAT purposes. Resolution order and the
// exact semantics live in the resolver; the modes themselves are:
//
//   - B2C: consumer, domestic VAT applies
//   - B2B: business without a confirmed cross-border VAT registration
//   - B2BReverseCharge: foreign EU business with a registry-confirmed VAT id,
//     buyer self-assesses VAT
//   - B2BNonEurope: the deployment itself sits outside the VAT union
type VatMode string

const (
	VatModeB2C              VatMode = "b2c"
	VatModeB2B              VatMode = "b2b"
	VatModeB2BReverseCharge VatMode = "b2b_reverse_charge"
	VatModeB2BNonEurope     VatMode = "b2b_non_europe"
)

// Validation is the outcome of one VAT id check. FromCache marks results
// served from the consultation audit trail during a registry outage; their
// RequestDate is the cached consultation's validation date.
type Validation struct {
	CountryCode        string
	VatNumber          string
	Valid              bool
	ConsultationNumber string
	RequestDate        time.Time
	FromCache          bool
}

// Consultation is one append-only audit row proving a registry check
// happened. ConsultationNumber is the registry's own identifier and the
// dedupe key: the registry may return the same identifier for duplicate
// requests, and that must not produce a second row. Rows are never updated
// or deleted.
type Consultation struct {
	ID                 string
	VatID              string
	ConsultationNumber string
	Valid              bool
	ValidatedAt        time.Time
	Response           json.RawMessage
}

// VatRate is one row of the per-country rate table. Absence of a row for a
// country signals "non-EU" for this domain.
type VatRate struct {
	Country  string
	Standard decimal.Decimal
}
