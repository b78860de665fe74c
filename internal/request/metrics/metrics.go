package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request workflow. A nil *Metrics
// is a no-op.
type Metrics struct {
	RequestsCreated   prometheus.Counter
	ItemsFulfilled    prometheus.Counter
	RequestsCompleted prometheus.Counter
	FulfillRejected   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_requests_created_total",
			Help: "Total number of document requests created by buyers",
		}),
		ItemsFulfilled: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_request_items_fulfilled_total",
			Help: "Total number of request items fulfilled by factories",
		}),
		RequestsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_requests_completed_total",
			Help: "Total number of requests whose items are all fulfilled",
		}),
		FulfillRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_request_fulfill_rejected_total",
			Help: "Fulfilment attempts rejected, by error code",
		}, []string{"code"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliancehub_request_operation_duration_seconds",
			Help:    "Duration of request workflow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.RequestsCreated.Inc()
	}
}

func (m *Metrics) IncFulfilled(completed bool) {
	if m == nil {
		return
	}
	m.ItemsFulfilled.Inc()
	if completed {
		m.RequestsCompleted.Inc()
	}
}

func (m *Metrics) IncFulfillRejected(code string) {
	if m != nil {
		m.FulfillRejected.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) Observe(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
