package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by credential metrics.
const (
	OutcomeSuccess = "success"
)

// CredentialMetrics counts credential-management operations by outcome.
// The outcome label is the error kind name, or "success".
type CredentialMetrics struct {
	codeRequests    *prometheus.CounterVec
	passwordChanges *prometheus.CounterVec
}

// NewCredentialMetrics creates the counters and registers them with reg.
func NewCredentialMetrics(reg prometheus.Registerer) *CredentialMetrics {
	m := &CredentialMetrics{
		codeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finwise",
			Subsystem: "credentials",
			Name:      "code_requests_total",
			Help:      "Verification code requests by outcome.",
		}, []string{"outcome"}),
		passwordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finwise",
			Subsystem: "credentials",
			Name:      "password_changes_total",
			Help:      "Password change attempts by proof method and outcome.",
		}, []string{"method", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.codeRequests, m.passwordChanges)
	}
	return m
}

// CodeRequested records one verification code request.
func (m *CredentialMetrics) CodeRequested(outcome string) {
	if m == nil {
		return
	}
	m.codeRequests.WithLabelValues(outcome).Inc()
}

// PasswordChanged records one password change attempt.
func (m *CredentialMetrics) PasswordChanged(method, outcome string) {
	if m == nil {
		return
	}
	m.passwordChanges.WithLabelValues(method, outcome).Inc()
}
