package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the clinic's business counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	payments          *prometheus.CounterVec
	paymentsRejected  *prometheus.CounterVec
	odontogramWrites  prometheus.Counter
	versionConflicts  prometheus.Counter
	patientsCompleted prometheus.Counter
}

// New registers the counters together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultorio",
			Name:      "payments_total",
			Help:      "Payment mutations applied to treatment budgets.",
		}, []string{"op"}),
		paymentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultorio",
			Name:      "payments_rejected_total",
			Help:      "Payment mutations rejected by the ledger.",
		}, []string{"reason"}),
		odontogramWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consultorio",
			Name:      "odontogram_versions_total",
			Help:      "Odontogram versions appended.",
		}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consultorio",
			Name:      "odontogram_version_conflicts_total",
			Help:      "Version number collisions retried while appending odontograms.",
		}),
		patientsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consultorio",
			Name:      "complete_patients_total",
			Help:      "Patients created together with their clinical record.",
		}),
	}
	reg.MustRegister(
		m.payments,
		m.paymentsRejected,
		m.odontogramWrites,
		m.versionConflicts,
		m.patientsCompleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PaymentApplied(op string) { m.payments.WithLabelValues(op).Inc() }
func (m *Metrics) PaymentRejected(reason string) { m.paymentsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) OdontogramVersionCreated() { m.odontogramWrites.Inc() }
func (m *Metrics) OdontogramVersionConflict() { m.versionConflicts.Inc() }
func (m *Metrics) CompletePatientSaved() { m.patientsCompleted.Inc() }
