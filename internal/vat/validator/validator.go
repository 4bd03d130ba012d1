// Package validator checks VAT ids against the external registry, keeps the
// consultation audit trail, and degrades to cached consultations when the
// registry is down.
package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	vatmetrics "fakturo/internal/vat/metrics"
	"fakturo/internal/vat/models"
	"fakturo/internal/vat/vies"
	"fakturo/pkg/platform/sentinel"
	"fakturo/pkg/requestcontext"
)

// Failure taxonomy of Validate. Callers (the resolver) absorb both; the
// distinction matters for logging and for retry decisions upstream.
var (
	// ErrRegistryUnavailable: transport-level outage and no usable cached
	// consultation. Retryable.
	ErrRegistryUnavailable = errors.New("vat registry unavailable")
	// ErrBadVatID: malformed id or a registry bad-request rejection. Not
	// retryable and never served from cache.
	ErrBadVatID = errors.New("invalid vat id")
)

// ConsultationStore is the append-only audit trail the validator writes.
// Add must dedupe on the consultation number; there is no update method by
// contract.
type ConsultationStore interface {
	Add(ctx context.Context, c *models.Consultation) error
	FindLatestByVatID(ctx context.Context, vatID string, cutoff time.Time) (*models.Consultation, error)
}

// Validator performs registry checks with audit recording and offline
// fallback.
type Validator struct {
	client           vies.Client
	consultations    ConsultationStore
	requesterVatID   string
	offlineThreshold time.Duration
	log              *slog.Logger
	metrics          *vatmetrics.Metrics
}

// Option configures the Validator.
type Option func(*Validator)

// WithRequesterVatID sets the supplier's own VAT id, sent along so the
// registry issues consultation numbers.
func WithRequesterVatID(vatID string) Option {
	return func(v *Validator) { v.requesterVatID = vatID }
}

// WithOfflineThreshold allows cached consultations up to this age to stand
// in for the registry during outages. Zero (the default) disables the
// fallback entirely, which takes priority over any matching cached row.
func WithOfflineThreshold(threshold time.Duration) Option {
	return func(v *Validator) { v.offlineThreshold = threshold }
}

// WithLogger sets a logger for degradation events.
func WithLogger(log *slog.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *vatmetrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// New creates a validator over the registry client and consultation store.
func New(client vies.Client, consultations ConsultationStore, opts ...Option) *Validator {
	v := &Validator{
		client:        client,
		consultations: consultations,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate checks the VAT id against the registry.
//
// On success with a consultation number, an audit row is recorded (replayed
// identifiers are skipped silently). On a transport outage the youngest
// cached consultation within the offline threshold is returned verbatim,
// with FromCache set and the cached validation date as RequestDate;
// otherwise ErrRegistryUnavailable. Bad-request rejections surface as
// ErrBadVatID and never consult the cache.
func (v *Validator) Validate(ctx context.Context, vatID string) (*models.Validation, error) {
	country, number, err := SplitVatID(vatID)
	if err != nil {
		return nil, err
	}
	// Audit rows and cache lookups key on the normalized id, never on the
	// caller's raw spelling.
	vatID = country + number

	req := vies.CheckRequest{CountryCode: country, VatNumber: number}
	if v.requesterVatID != "" {
		if rc, rn, err := SplitVatID(v.requesterVatID); err == nil {
			req.RequesterMemberStateCode = rc
			req.RequesterNumber = rn
		}
	}

	resp, err := v.client.CheckVat(ctx, req)
	if err != nil {
		if vies.IsBadRequest(err) {
			v.metrics.IncRegistryErrors(string(vies.CategoryBadRequest))
			return nil, fmt.Errorf("%w: %v", ErrBadVatID, err)
		}
		v.metrics.IncRegistryErrors(string(vies.CategoryUnavailable))
		return v.fromCache(ctx, vatID, err)
	}

	if resp.ConsultationNumber != "" {
		if err := v.record(ctx, vatID, resp); err != nil {
			return nil, err
		}
	}

	return &models.Validation{
		CountryCode:        resp.CountryCode,
		VatNumber:          resp.VatNumber,
		Valid:              resp.Valid,
		ConsultationNumber: resp.ConsultationNumber,
		RequestDate:        resp.RequestDate,
	}, nil
}

func (v *Validator) record(ctx context.Context, vatID string, resp *vies.CheckResponse) error {
	snapshot, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("snapshot registry response: %w", err)
	}
	c := &models.Consultation{
		ID:                 uuid.NewString(),
		VatID:              vatID,
		ConsultationNumber: resp.ConsultationNumber,
		Valid:              resp.Valid,
		ValidatedAt:        resp.RequestDate,
		Response:           snapshot,
	}
	if err := v.consultations.Add(ctx, c); err != nil {
		return fmt.Errorf("record consultation %s: %w", resp.ConsultationNumber, err)
	}
	v.metrics.IncConsultationsRecorded()
	return nil
}

// fromCache serves the outage path. The cached result is returned verbatim;
// only the request date is substituted with the cached consultation's
// validation date, since the registry never answered this request.
func (v *Validator) fromCache(ctx context.Context, vatID string, cause error) (*models.Validation, error) {
	if v.offlineThreshold <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, cause)
	}

	cutoff := requestcontext.Now(ctx).Add(-v.offlineThreshold)
	cached, err := v.consultations.FindLatestByVatID(ctx, vatID, cutoff)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, cause)
	}
	if err != nil {
		return nil, fmt.Errorf("consultation cache lookup: %w", err)
	}

	if v.log != nil {
		v.log.WarnContext(ctx, "vat registry unreachable, serving cached consultation",
			"vat_id", vatID,
			"consultation_number", cached.ConsultationNumber,
			"validated_at", cached.ValidatedAt,
			"error", cause,
		)
	}
	v.metrics.IncOfflineFallbacks()

	country, number, _ := SplitVatID(vatID)
	return &models.Validation{
		CountryCode:        country,
		VatNumber:          number,
		Valid:              cached.Valid,
		ConsultationNumber: cached.ConsultationNumber,
		RequestDate:        cached.ValidatedAt,
		FromCache:          true,
	}, nil
}

// SplitVatID separates the two-letter country prefix from the local number.
func SplitVatID(vatID string) (country, number string, err error) {
	vatID = strings.ToUpper(strings.TrimSpace(vatID))
	if len(vatID) < 3 {
		return "", "", fmt.Errorf("%w: %q too short", ErrBadVatID, vatID)
	}
	prefix := vatID[:2]
	for _, r := range prefix {
		if !unicode.IsUpper(r) || r > unicode.MaxASCII {
			return "", "", fmt.Errorf("%w: %q has no country prefix", ErrBadVatID, vatID)
		}
	}
	return prefix, vatID[2:], nil
}
