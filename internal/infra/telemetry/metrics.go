package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors for the trust core's domain events.
type Metrics struct {
	SessionsCreated   prometheus.Counter
	SessionsEvicted   prometheus.Counter
	Anomalies         *prometheus.CounterVec
	ChallengesIssued  *prometheus.CounterVec
	ChallengeOutcomes *prometheus.CounterVec
}

// NewMetrics builds the domain collectors and registers them with the
// supplied registerer. A nil registerer leaves them unregistered, which is
// what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "sessions_created_total",
			Help:      "Total number of sessions admitted by the registry.",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "sessions_evicted_total",
			Help:      "Total number of sessions evicted by the concurrency cap.",
		}),
		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "login_anomalies_total",
			Help:      "Total number of anomalous logins partitioned by classification.",
		}, []string{"kind"}),
		ChallengesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "stepup_challenges_issued_total",
			Help:      "Total number of step-up challenges issued partitioned by scope.",
		}, []string{"scope"}),
		ChallengeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trust",
			Name:      "stepup_challenge_outcomes_total",
			Help:      "Terminal step-up challenge outcomes partitioned by status.",
		}, []string{"status"}),
	}
}
