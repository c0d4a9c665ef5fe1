package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Payment notifications processed, by outcome",
		},
		[]string{"outcome"},
	)

	tokenCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "entry_token_collisions_total",
			Help: "Entry token writes rejected by the uniqueness constraint",
		},
	)

	checkinScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_scans_total",
			Help: "Check-in toggle requests, by action and result",
		},
		[]string{"action", "result"},
	)
)

// Reconciliation outcomes.
const (
	OutcomeIgnored     = "ignored"
	OutcomeNoTicket    = "ticket_not_found"
	OutcomeUpdated     = "updated"
	OutcomeTokenIssued = "token_issued"
	OutcomeFailed      = "failed"
)

func TrackReconciliation(outcome string) {
	reconciliations.WithLabelValues(outcome).Inc()
}

func TrackTokenCollision() {
	tokenCollisions.Inc()
}

// TrackScan records a toggle attempt; result is "ok" or the rejection code.
func TrackScan(action, result string) {
	checkinScans.WithLabelValues(action, result).Inc()
}
