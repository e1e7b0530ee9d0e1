package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicly",
			Subsystem: "ledger",
			Name:      "contributions_total",
			Help:      "Contribution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	contributedPence = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "civicly",
			Subsystem: "ledger",
			Name:      "contributed_pence_total",
			Help:      "Pence moved from wallets into campaigns.",
		},
	)

	topups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicly",
			Subsystem: "ledger",
			Name:      "topups_total",
			Help:      "Top-up operations by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	campaignsFunded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "civicly",
			Subsystem: "campaigns",
			Name:      "funded_total",
			Help:      "Campaigns that crossed their funding threshold.",
		},
	)

	contributionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "civicly",
			Subsystem: "ledger",
			Name:      "contribution_duration_seconds",
			Help:      "Time spent in the contribution store transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		contributions,
		contributedPence,
		topups,
		campaignsFunded,
		contributionDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordContribution counts one contribution attempt.
func RecordContribution(outcome string, amountPence int64, seconds float64, funded bool) {
	contributions.WithLabelValues(outcome).Inc()
	contributionDuration.Observe(seconds)
	if outcome == "ok" {
		contributedPence.Add(float64(amountPence))
	}
	if funded {
		campaignsFunded.Inc()
	}
}

// RecordTopup counts a top-up stage ("create" or "complete").
func RecordTopup(stage, outcome string) {
	topups.WithLabelValues(stage, outcome).Inc()
}
