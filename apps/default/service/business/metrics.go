package business

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	FlowLogin   = "login"
	FlowConsent = "consent"
	FlowLogout  = "logout"
)

// DecisionMetrics counts resolved challenges by flow and outcome.
type DecisionMetrics struct {
	decisions *prometheus.CounterVec
}

func NewDecisionMetrics(registerer prometheus.Registerer) (*DecisionMetrics, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "login_consent_decisions_total",
		Help: "Login, consent and logout challenges resolved, by outcome.",
	}, []string{"flow", "outcome"})

	if registerer != nil {
		if err := registerer.Register(decisions); err != nil {
			return nil, err
		}
	}

	return &DecisionMetrics{decisions: decisions}, nil
}

func (m *DecisionMetrics) Observe(flow, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(flow, outcome).Inc()
}
