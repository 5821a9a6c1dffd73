// Package metrics defines the Prometheus collectors for the automation
// engine. Register them once at startup with Register.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var WebhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "automation_webhook_events_total",
		Help: "Total number of webhook trigger events received",
	},
	[]string{"status"},
)

var RulesMatchedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "automation_rules_matched_total",
		Help: "Total number of rule condition matches across all tenants",
	},
)

var DispatchAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "automation_dispatch_attempts_total",
		Help: "Total number of outbound dispatch attempts",
	},
	[]string{"channel", "status"},
)

var DispatchFallbacksTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "automation_dispatch_fallbacks_total",
		Help: "Total number of chat sends that fell back to SMS",
	},
)

var DispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "automation_dispatch_duration_seconds",
		Help:    "Time taken to dispatch one matched rule, fallback included",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"channel"},
)

// Register registers all automation collectors with the default registry.
// Call once from main.
func Register() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(RulesMatchedTotal)
	prometheus.MustRegister(DispatchAttemptsTotal)
	prometheus.MustRegister(DispatchFallbacksTotal)
	prometheus.MustRegister(DispatchDuration)
}
