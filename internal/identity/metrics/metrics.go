package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts account activity. A nil *Metrics is a no-op.
type Metrics struct {
	Registrations prometheus.Counter
	Logins        prometheus.Counter
	LoginFailures *prometheus.CounterVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_identity_registrations_total",
			Help: "Total number of registered users",
		}),
		Logins: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_identity_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_identity_login_failures_total",
			Help: "Failed logins by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncRegistrations() {
	if m != nil {
		m.Registrations.Inc()
	}
}

func (m *Metrics) IncLogins() {
	if m != nil {
		m.Logins.Inc()
	}
}

func (m *Metrics) IncLoginFailures(reason string) {
	if m != nil {
		m.LoginFailures.WithLabelValues(reason).Inc()
	}
}
