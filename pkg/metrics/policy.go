package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics records authorization engine outcomes.
type PolicyMetrics struct {
	decisions   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	cascades    *prometheus.CounterVec
}

// NewPolicyMetrics registers the engine metrics on the provided registerer.
func NewPolicyMetrics(reg prometheus.Registerer) *PolicyMetrics {
	if reg == nil {
		return &PolicyMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_decisions_total",
		Help: "Authorization decisions per table, operation, and outcome.",
	}, []string{"table", "operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_transitions_total",
		Help: "Membership status transition attempts per from/to pair and outcome.",
	}, []string{"from", "to", "outcome"})
	cascades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_reactions_total",
		Help: "Derived writes performed after a triggering commit.",
	}, []string{"reaction", "outcome"})
	reg.MustRegister(decisions, transitions, cascades)
	return &PolicyMetrics{
		decisions:   decisions,
		transitions: transitions,
		cascades:    cascades,
	}
}

// IncDecision counts an allow/deny outcome for the given table and operation.
func (p *PolicyMetrics) IncDecision(table, operation string, allowed bool) {
	if p == nil || p.decisions == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	p.decisions.WithLabelValues(normalizeLabel(table), normalizeLabel(operation), outcome).Inc()
}

// IncTransition counts a membership status transition attempt.
func (p *PolicyMetrics) IncTransition(from, to string, allowed bool) {
	if p == nil || p.transitions == nil {
		return
	}
	outcome := "rejected"
	if allowed {
		outcome = "applied"
	}
	p.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), outcome).Inc()
}

// IncCascade counts a cascade reaction outcome.
func (p *PolicyMetrics) IncCascade(reaction string, applied bool) {
	if p == nil || p.cascades == nil {
		return
	}
	outcome := "skipped"
	if applied {
		outcome = "applied"
	}
	p.cascades.WithLabelValues(normalizeLabel(reaction), outcome).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
