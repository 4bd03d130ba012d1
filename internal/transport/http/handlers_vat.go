package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fakturo/internal/vat/validator"
	"fakturo/pkg/platform/sentinel"
	"fakturo/pkg/requestcontext"
)

type validateVatRequest struct {
	VatID string `json:"vat_id"`
}

type validateVatResponse struct {
	CountryCode        string    `json:"country_code"`
	VatNumber          string    `json:"vat_number"`
	Valid              bool      `json:"valid"`
	ConsultationNumber string    `json:"consultation_number,omitempty"`
	RequestDate        time.Time `json:"request_date"`
	FromCache          bool      `json:"from_cache"`
}

// handleValidateVat checks a VAT id against the registry, falling back to
// the offline cache when configured.
func (h *Handler) handleValidateVat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateVatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	result, err := h.validator.Validate(ctx, req.VatID)
	if err != nil {
		switch {
		case errors.Is(err, validator.ErrBadVatID):
			writeJSONError(w, http.StatusBadRequest, "bad_vat_id", "malformed VAT id")
		case errors.Is(err, validator.ErrRegistryUnavailable):
			w.Header().Set("Retry-After", "30")
			writeJSONError(w, http.StatusServiceUnavailable, "registry_unavailable", "VAT registry is unavailable")
		default:
			h.log.ErrorContext(ctx, "vat validation failed",
				"error", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to validate VAT id")
		}
		return
	}

	writeJSON(w, http.StatusOK, validateVatResponse{
		CountryCode:        result.CountryCode,
		VatNumber:          result.VatNumber,
		Valid:              result.Valid,
		ConsultationNumber: result.ConsultationNumber,
		RequestDate:        result.RequestDate,
		FromCache:          result.FromCache,
	})
}

type vatModeResponse struct {
	BuyerID int64  `json:"buyer_id"`
	VatMode string `json:"vat_mode"`
}

// handleResolveVatMode classifies a buyer's billing situation. Resolution
// never fails; degraded inputs land on the default mode.
func (h *Handler) handleResolveVatMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID, err := strconv.ParseInt(chi.URLParam(r, "buyerID"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "buyer id must be an integer")
		return
	}

	buyer, err := h.buyers.FindByID(ctx, buyerID)
	if errors.Is(err, sentinel.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "buyer not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "failed to load buyer",
			"buyer_id", buyerID,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load buyer")
		return
	}

	mode := h.resolver.Resolve(ctx, buyer)
	writeJSON(w, http.StatusOK, vatModeResponse{
		BuyerID: buyerID,
		VatMode: string(mode),
	})
}
