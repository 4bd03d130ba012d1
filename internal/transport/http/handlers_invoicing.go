package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	invmodels "fakturo/internal/invoicing/models"
	"fakturo/internal/invoicing/sequence"
	"fakturo/internal/invoicing/service"
	"fakturo/pkg/platform/lock"
	"fakturo/pkg/platform/sentinel"
	"fakturo/pkg/requestcontext"
)

type partyResponse struct {
	Name      string `json:"name"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	TaxID     string `json:"tax_id,omitempty"`
	VatID     string `json:"vat_id,omitempty"`
}

type lineItemResponse struct {
	Text            string          `json:"text"`
	Count           int             `json:"count"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	PriceWithoutVat decimal.Decimal `json:"price_without_vat"`
	VatRate         decimal.Decimal `json:"vat_rate"`
	Currency        string          `json:"currency"`
}

type invoiceResponse struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	Buyer       partyResponse      `json:"buyer"`
	Supplier    partyResponse      `json:"supplier"`
	CreatedDate time.Time          `json:"created_date"`
	UpdatedDate time.Time          `json:"updated_date"`
	Items       []lineItemResponse `json:"items"`
}

func toInvoiceResponse(inv *invmodels.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:          inv.ID,
		Number:      inv.Number,
		Buyer:       toPartyResponse(inv.Buyer),
		Supplier:    toPartyResponse(inv.Supplier),
		CreatedDate: inv.CreatedDate,
		UpdatedDate: inv.UpdatedDate,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			Text:            item.Text,
			Count:           item.Count,
			UnitPrice:       item.UnitPrice,
			PriceWithoutVat: item.PriceWithoutVat,
			VatRate:         item.VatRate,
			Currency:        item.Currency,
		})
	}
	return resp
}

func toPartyResponse(p invmodels.PartySnapshot) partyResponse {
	return partyResponse{
		Name:      p.Name,
		Street:    p.Street,
		City:      p.City,
		Zip:       p.Zip,
		Country:   p.Country,
		CompanyID: p.CompanyID,
		TaxID:     p.TaxID,
		VatID:     p.VatID,
	}
}

// handleGenerateInvoice triggers generation for one payment. Repeating the
// call is safe; it returns the existing invoice with 200 instead of 201.
func (h *Handler) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "payment id must be an integer")
		return
	}

	inv, err := h.generator.Generate(ctx, paymentID)
	if err != nil {
		h.writeGenerateError(w, r, paymentID, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) writeGenerateError(w http.ResponseWriter, r *http.Request, paymentID int64, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "payment not found")
	case errors.Is(err, service.ErrPaymentNotInvoiceable):
		writeJSONError(w, http.StatusUnprocessableEntity, "not_invoiceable", "payment is not invoiceable")
	case errors.Is(err, service.ErrMissingBuyerAddress):
		writeJSONError(w, http.StatusUnprocessableEntity, "missing_address", "buyer has no invoice address")
	case errors.Is(err, lock.ErrAcquireTimeout):
		// Another generation run holds the payment; the client should retry.
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "locked", "generation in progress, retry later")
	case errors.Is(err, sequence.ErrSequenceOverflow):
		h.log.ErrorContext(ctx, "monthly sequence exhausted",
			"payment_id", paymentID,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to generate invoice")
	default:
		h.log.ErrorContext(ctx, "invoice generation failed",
			"payment_id", paymentID,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to generate invoice")
	}
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "invoiceID")

	inv, err := h.invoices.FindByID(ctx, invoiceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "invoice not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "failed to load invoice",
			"invoice_id", invoiceID,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to load invoice")
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}
