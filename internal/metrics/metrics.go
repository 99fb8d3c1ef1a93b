package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection engine metrics, exposed at /metrics
var (
	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_detection_cycles_total",
			Help: "Detection cycles by result",
		},
		[]string{"result"}, // ok, failed, skipped
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adwatch_detection_cycle_duration_seconds",
			Help:    "Detection cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	CampaignFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_campaign_failures_total",
			Help: "Per-campaign or per-metric processing failures by error kind",
		},
		[]string{"kind"},
	)

	// Alert metrics
	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_anomalies_total",
			Help: "Anomalous observations detected",
		},
		[]string{"metric", "severity"},
	)

	AlertsAbsorbed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_alerts_absorbed_total",
			Help: "Anomalies absorbed into an existing active alert",
		},
		[]string{"metric"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adwatch_alert_transitions_total",
			Help: "Alert lifecycle transitions by target status",
		},
		[]string{"status"}, // ACTIVE on creation
	)

	// Health
	CampaignHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adwatch_campaign_health_score",
			Help: "Latest computed campaign health score",
		},
		[]string{"campaign_id"},
	)
)
