package authgate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and turns every observation into a no-op.
type Metrics struct {
	logins         *prometheus.CounterVec
	signups        *prometheus.CounterVec
	logouts        prometheus.Counter
	tokensRejected prometheus.Counter
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_signups_total",
			Help: "Signup attempts by result.",
		}, []string{"result"}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "authgate_logouts_total",
			Help: "Completed logouts.",
		}),
		tokensRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "authgate_tokens_rejected_total",
			Help: "Tokens rejected during validation.",
		}),
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) signup(result string) {
	if m != nil {
		m.signups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) logout() {
	if m != nil {
		m.logouts.Inc()
	}
}

func (m *Metrics) tokenRejected() {
	if m != nil {
		m.tokensRejected.Inc()
	}
}
