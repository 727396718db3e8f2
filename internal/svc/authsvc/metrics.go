package authsvc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrupp/lostbuddy/internal/domain"
)

// ResultSuccess is the result label of a successful operation. Failed
// operations are labelled with their error code.
const ResultSuccess = "success"

// Metrics holds the counters recorded by AuthService.
type Metrics struct {
	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	Logouts       prometheus.Counter
}

// NewMetrics creates unregistered counters. Use Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lostbuddy_auth_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"result"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lostbuddy_auth_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
		Logouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lostbuddy_auth_logouts_total",
				Help: "Total number of logouts",
			},
		),
	}
}

// Register registers the counters with reg.
// Panics if registration fails (following prometheus convention).
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Registrations, m.Logins, m.Logouts)
}

func resultLabel(err error) string {
	if err == nil {
		return ResultSuccess
	}

	return domain.ErrorCode(err)
}

func (m *Metrics) recordRegistration(err error) {
	if m != nil {
		m.Registrations.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) recordLogin(err error) {
	if m != nil {
		m.Logins.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (m *Metrics) recordLogout() {
	if m != nil {
		m.Logouts.Inc()
	}
}
