// Package httptransport is the thin HTTP layer over the invoicing and VAT
// services. Handlers translate between JSON and the domain; no business
// logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	invmodels "fakturo/internal/invoicing/models"
	vatmodels "fakturo/internal/vat/models"
)

// InvoiceGenerator is the coordinator capability the API exposes.
type InvoiceGenerator interface {
	Generate(ctx context.Context, paymentID int64) (*invmodels.Invoice, error)
}

// InvoiceReader loads issued invoices.
type InvoiceReader interface {
	FindByID(ctx context.Context, id string) (*invmodels.Invoice, error)
}

// BuyerReader loads buyers with their invoice address.
type BuyerReader interface {
	FindByID(ctx context.Context, id int64) (*invmodels.Buyer, error)
}

// VatValidator checks a VAT id against the registry (or the offline cache).
type VatValidator interface {
	Validate(ctx context.Context, vatID string) (*vatmodels.Validation, error)
}

// VatResolver classifies a buyer into a VAT mode.
type VatResolver interface {
	Resolve(ctx context.Context, buyer *invmodels.Buyer) vatmodels.VatMode
}

// Handler holds the services behind the admin API.
type Handler struct {
	log       *slog.Logger
	generator InvoiceGenerator
	invoices  InvoiceReader
	buyers    BuyerReader
	validator VatValidator
	resolver  VatResolver
	jwtKey    string
}

// NewHandler creates the API handler.
func NewHandler(
	generator InvoiceGenerator,
	invoices InvoiceReader,
	buyers BuyerReader,
	validator VatValidator,
	resolver VatResolver,
	jwtKey string,
	log *slog.Logger,
) *Handler {
	return &Handler{
		log:       log,
		generator: generator,
		invoices:  invoices,
		buyers:    buyers,
		validator: validator,
		resolver:  resolver,
		jwtKey:    jwtKey,
	}
}

// Router wires all endpoints. Operational endpoints live under /admin and
// require a signed bearer token; health and metrics are open.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(h.log))
	r.Use(RequestID)
	r.Use(Logger(h.log))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(RequireAdmin(h.jwtKey, h.log))
		admin.Post("/payments/{paymentID}/invoice", h.handleGenerateInvoice)
		admin.Get("/invoices/{invoiceID}", h.handleGetInvoice)
		admin.Post("/vat/validate", h.handleValidateVat)
		admin.Get("/buyers/{buyerID}/vat-mode", h.handleResolveVatMode)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
