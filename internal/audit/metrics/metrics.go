package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ledger writes and the outbox relay. A nil *Metrics is a
// no-op so tests and tools can omit it.
type Metrics struct {
	Recorded          *prometheus.CounterVec
	WriteFailures     prometheus.Counter
	RecordDuration    prometheus.Histogram
	OutboxPublished   prometheus.Counter
	OutboxPublishErrs prometheus.Counter
}

// New registers the audit metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the audit metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_audit_entries_total",
			Help: "Audit entries written, by action",
		}, []string{"action"}),
		WriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_audit_write_failures_total",
			Help: "Audit writes that failed and aborted their unit of work",
		}),
		RecordDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliancehub_audit_record_duration_seconds",
			Help:    "Duration of audit Record calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_audit_outbox_published_total",
			Help: "Outbox rows published to the audit topic",
		}),
		OutboxPublishErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_audit_outbox_publish_errors_total",
			Help: "Outbox relay batches that failed to publish",
		}),
	}
}

func (m *Metrics) IncRecorded(action string) {
	if m == nil {
		return
	}
	m.Recorded.WithLabelValues(action).Inc()
}

func (m *Metrics) IncWriteFailures() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

// ObserveRecord records a Record duration. Call with time.Now() taken at the
// start of the operation.
func (m *Metrics) ObserveRecord(start time.Time) {
	if m == nil {
		return
	}
	m.RecordDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncOutboxPublishErrors() {
	if m == nil {
		return
	}
	m.OutboxPublishErrs.Inc()
}
