// AngelaMos | 2026
// metrics.go

package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	webhookOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_webhook_outcomes_total",
		Help: "Billing webhook deliveries by outcome",
	}, []string{"outcome", "event_type"})

	entitlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_transitions_total",
		Help: "Entitlement state changes by resulting status",
	}, []string{"status"})

	engagementOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_operations_total",
		Help: "Engagement ledger operations by relation and result",
	}, []string{"relation", "result"})

	engagementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engagement_operation_duration_seconds",
		Help:    "Engagement ledger transaction duration",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"relation"})
)

func RecordWebhookOutcome(outcome, eventType string) {
	webhookOutcomes.WithLabelValues(outcome, eventType).Inc()
}

func RecordEntitlementTransition(status string) {
	entitlementTransitions.WithLabelValues(status).Inc()
}

func RecordEngagement(relation, result string, seconds float64) {
	engagementOps.WithLabelValues(relation, result).Inc()
	engagementDuration.WithLabelValues(relation).Observe(seconds)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
