package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evidence module. A nil *Metrics is
// a no-op.
type Metrics struct {
	EvidenceCreated   prometheus.Counter
	VersionsAdded     prometheus.Counter
	EvidenceDeleted   prometheus.Counter
	VersionRetries    prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EvidenceCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_evidence_created_total",
			Help: "Total number of evidence documents created",
		}),
		VersionsAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_evidence_versions_added_total",
			Help: "Total number of versions appended to existing evidence",
		}),
		EvidenceDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_evidence_deleted_total",
			Help: "Total number of evidence documents deleted",
		}),
		VersionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_evidence_version_retries_total",
			Help: "AddVersion attempts retried after a version-number collision",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliancehub_evidence_operation_duration_seconds",
			Help:    "Duration of evidence operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.EvidenceCreated.Inc()
	}
}

func (m *Metrics) IncVersionsAdded() {
	if m != nil {
		m.VersionsAdded.Inc()
	}
}

func (m *Metrics) IncDeleted() {
	if m != nil {
		m.EvidenceDeleted.Inc()
	}
}

func (m *Metrics) IncVersionRetries() {
	if m != nil {
		m.VersionRetries.Inc()
	}
}

// Observe records an operation duration. Call with time.Now() taken at the
// start of the operation.
func (m *Metrics) Observe(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
