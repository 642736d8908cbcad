// Package metrics defines Prometheus metrics for the broker.
//
// Metric naming follows Prometheus conventions:
//   - linux_broker_ prefix for all custom metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthorizationsTotal counts Check outcomes by authorization level.
	AuthorizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linux_broker_authorizations_total",
			Help: "Total authorization decisions by level (AUTO, MANUAL, BLOCKED).",
		},
		[]string{"level"},
	)

	// ApprovalTransitionsTotal counts lifecycle transitions by kind and
	// resulting state.
	ApprovalTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linux_broker_approval_transitions_total",
			Help: "Total approval lifecycle transitions by kind (command, remediation) and state.",
		},
		[]string{"kind", "state"},
	)

	// DeniedCommandsTotal counts commands recorded by the Auto-Learning
	// Collector, by risk level.
	DeniedCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linux_broker_denied_commands_total",
			Help: "Total denied command observations by risk level.",
		},
		[]string{"risk_level"},
	)

	// SSHDialSeconds is a histogram of SSH dial latency by role.
	SSHDialSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linux_broker_ssh_dial_seconds",
			Help:    "SSH connection establishment latency in seconds, by role.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"role"},
	)

	// PendingApprovals is the current number of non-terminal entries,
	// by kind.
	PendingApprovals = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linux_broker_pending_approvals",
			Help: "Current count of non-terminal pending entries, by kind.",
		},
		[]string{"kind"},
	)
)

// Registry is the broker's own Prometheus registry, kept separate from the
// global DefaultRegisterer so tests and multiple broker instances in the
// same process do not collide on metric registration.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		AuthorizationsTotal,
		ApprovalTransitionsTotal,
		DeniedCommandsTotal,
		SSHDialSeconds,
		PendingApprovals,
	)
}

// RecordAuthorization records one Check outcome.
func RecordAuthorization(level string) {
	AuthorizationsTotal.WithLabelValues(level).Inc()
}

// RecordApprovalTransition records one lifecycle transition.
func RecordApprovalTransition(kind, state string) {
	ApprovalTransitionsTotal.WithLabelValues(kind, state).Inc()
}

// RecordDeniedCommand records one Auto-Learning Collector observation.
func RecordDeniedCommand(riskLevel string) {
	DeniedCommandsTotal.WithLabelValues(riskLevel).Inc()
}

// RecordSSHDial records SSH dial latency for a role.
func RecordSSHDial(role string, d time.Duration) {
	SSHDialSeconds.WithLabelValues(role).Observe(d.Seconds())
}

// SetPendingApprovals sets the current gauge value for a kind.
func SetPendingApprovals(kind string, n int) {
	PendingApprovals.WithLabelValues(kind).Set(float64(n))
}
