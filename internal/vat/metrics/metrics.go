package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for VAT classification. Construct
// once in main; consumers tolerate a nil receiver so tests can skip it.
type Metrics struct {
	ConsultationsRecorded prometheus.Counter
	OfflineFallbacks      prometheus.Counter
	RegistryErrors        *prometheus.CounterVec
	ResolvedModes         *prometheus.CounterVec
}

// New creates and registers all VAT metrics.
func New() *Metrics {
	return &Metrics{
		ConsultationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_vat_consultations_recorded_total",
			Help: "Consultation audit rows recorded from registry responses",
		}),
		OfflineFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fakturo_vat_offline_fallbacks_total",
			Help: "Validations served from the cached consultation trail during registry outages",
		}),
		RegistryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fakturo_vat_registry_errors_total",
			Help: "Registry call failures by category",
		}, []string{"category"}),
		ResolvedModes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fakturo_vat_resolved_modes_total",
			Help: "VAT mode resolutions by resulting mode",
		}, []string{"mode"}),
	}
}

func (m *Metrics) IncConsultationsRecorded() {
	if m == nil {
		return
	}
	m.ConsultationsRecorded.Inc()
}

func (m *Metrics) IncOfflineFallbacks() {
	if m == nil {
		return
	}
	m.OfflineFallbacks.Inc()
}

func (m *Metrics) IncRegistryErrors(category string) {
	if m == nil {
		return
	}
	m.RegistryErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) IncResolvedMode(mode string) {
	if m == nil {
		return
	}
	m.ResolvedModes.WithLabelValues(mode).Inc()
}
