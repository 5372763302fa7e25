package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_emails_processed_total",
			Help: "Messages run through the ingestion pipeline, by outcome",
		},
		[]string{"outcome"}, // imported, duplicate, extraction_failed, parse_rejected, quality_rejected, timeout, error
	)

	CandidatesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_candidates_imported_total",
			Help: "New applications created from email",
		},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_check_cycle_duration_seconds",
			Help:    "Duration of one full automation cycle across accounts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	MessageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_message_duration_seconds",
			Help:    "Per-message pipeline duration (fetch, extract, parse, persist)",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)

	AccountCheckErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_account_check_errors_total",
			Help: "Account-level cycle failures, by kind",
		},
		[]string{"kind"}, // connectivity, other
	)

	ControllerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_controller_state",
			Help: "Automation controller state (0=stopped, 1=running, 2=monitoring)",
		},
	)
)

func RecordOutcome(outcome string) {
	EmailsProcessed.WithLabelValues(outcome).Inc()
}

func ObserveCycle(d time.Duration) {
	CycleDuration.Observe(d.Seconds())
}

func ObserveMessage(d time.Duration) {
	MessageDuration.Observe(d.Seconds())
}
