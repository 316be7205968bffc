// Package metrics holds the Prometheus collectors for sign-in and session
// gating.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sign-in outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailure   = "failure"
	OutcomeSent      = "sent"
)

// Sign-in methods.
const (
	MethodGoogle    = "google"
	MethodEmailLink = "email_link"
	MethodIDToken   = "id_token"
)

// Metrics holds the sign-in and gate counters.
type Metrics struct {
	registry *prometheus.Registry

	SignIns        *prometheus.CounterVec
	GateDecisions  *prometheus.CounterVec
	ClaimsRefresh  *prometheus.CounterVec
	SessionsIssued prometheus.Counter
}

// New registers collectors, including the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the counters on reg, for tests.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lookacross_signin_total",
			Help: "Sign-in attempts by method and outcome",
		}, []string{"method", "outcome"}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lookacross_gate_decisions_total",
			Help: "Session gate decisions per request",
		}, []string{"decision"}),
		ClaimsRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lookacross_claims_refresh_total",
			Help: "Claims resolutions by result (cached, refreshed, defaulted)",
		}, []string{"result"}),
		SessionsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "lookacross_sessions_issued_total",
			Help: "Session tokens minted",
		}),
	}
}

// SignIn counts a sign-in attempt by method and outcome.
func (m *Metrics) SignIn(method, outcome string) {
	m.SignIns.WithLabelValues(method, outcome).Inc()
}

// GateDecision counts a gate decision.
func (m *Metrics) GateDecision(decision string) {
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// ClaimsResolved counts a claims resolution outcome.
func (m *Metrics) ClaimsResolved(result string) {
	m.ClaimsRefresh.WithLabelValues(result).Inc()
}

// SessionIssued counts a session written to the client.
func (m *Metrics) SessionIssued() {
	m.SessionsIssued.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
