package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for invoice generation. Construct
// once in main; consumers tolerate a nil receiver so tests can skip it.
type Metrics struct {
	InvoicesGenerated  prometheus.Counter
	NumbersIssued      prometheus.Counter
	LockTimeouts       prometheus.Counter
	RejectedTriggers   prometheus.Counter
	GenerationDuration prometheus.Histogram
}

// New creates and registers all invoicing metrics.
func New() *Metrics {
	return &Metrics{
		InvoicesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_invoices_generated_total",
			Help: "Invoices created (each payment counts once, ever)",
		}),
		NumbersIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_invoice_numbers_issued_total",
			Help: "Invoice numbers issued",
		}),
		LockTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_generation_lock_timeouts_total",
			Help: "Generation attempts that could not acquire the per-payment lock in time",
		}),
		RejectedTriggers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_generation_rejected_total",
			Help: "Generation triggers rejected as expected (not invoiceable, missing address)",
		}),
		GenerationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fakturo_generation_duration_seconds",
			Help:    "End-to-end duration of invoice generation under the lock",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncInvoicesGenerated() {
	if m == nil {
		return
	}
	m.InvoicesGenerated.Inc()
}

func (m *Metrics) IncNumbersIssued() {
	if m == nil {
		return
	}
	m.NumbersIssued.Inc()
}

func (m *Metrics) IncLockTimeouts() {
	if m == nil {
		return
	}
	m.LockTimeouts.Inc()
}

func (m *Metrics) IncRejectedTriggers() {
	if m == nil {
		return
	}
	m.RejectedTriggers.Inc()
}

func (m *Metrics) ObserveGenerationDuration(seconds float64) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(seconds)
}
