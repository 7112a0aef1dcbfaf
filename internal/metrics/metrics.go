package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values of settlements
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// Reason label values of released reservations
const (
	ReleaseExpired  = "expired"
	ReleaseSwept    = "swept"
	ReleaseRejected = "rejected"
)

type Metrics struct {
	Settlements          *prometheus.CounterVec
	ReleasedReservations *prometheus.CounterVec
	Reservations         prometheus.Counter
	ConfirmedDeposits    prometheus.Counter
	OverdueReviews       prometheus.Counter
	JobDuration          *prometheus.HistogramVec
}

// Register collectors in reg. Pass prometheus.DefaultRegisterer to expose them on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peercash_settlements_total",
			Help: "Deposits settled by administrators",
		}, []string{"outcome"}),
		ReleasedReservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peercash_reservations_released_total",
			Help: "Reservations released and refunded to the requester",
		}, []string{"reason"}),
		Reservations: f.NewCounter(prometheus.CounterOpts{
			Name: "peercash_reservations_total",
			Help: "Withdraw requests reserved by claimants",
		}),
		ConfirmedDeposits: f.NewCounter(prometheus.CounterOpts{
			Name: "peercash_deposits_confirmed_total",
			Help: "Deposits confirmed against a reservation",
		}),
		OverdueReviews: f.NewCounter(prometheus.CounterOpts{
			Name: "peercash_review_overdue_reminders_total",
			Help: "Reminders emitted for deposits stuck in review",
		}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peercash_job_duration_seconds",
			Help:    "Duration of scheduled jobs",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"job"}),
	}
}

// Metrics registered in a private registry, for tests and tools
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
