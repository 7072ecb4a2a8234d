package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Outbound calls (chain RPC, price feed, treasury, payments, agent)
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of outbound requests per upstream",
		},
		[]string{"upstream", "status"},
	)
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "upstream_request_duration_seconds",
			Help: "Duration of outbound requests in seconds",
		},
		[]string{"upstream"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_circuit_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)

	// Domain
	ActiveAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_active_alerts",
			Help: "Number of unresolved alerts",
		},
	)
	AuditLogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_audit_log_entries",
			Help: "Number of retained audit log entries",
		},
	)
	SubscriptionActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_subscription_actions_total",
			Help: "Subscription lifecycle actions by kind and outcome",
		},
		[]string{"action", "outcome"},
	)
	LogStreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_log_stream_clients",
			Help: "Connected audit log stream clients",
		},
	)
)

var initOnce sync.Once

func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)

		prometheus.MustRegister(UpstreamRequestsTotal)
		prometheus.MustRegister(UpstreamRequestDuration)
		prometheus.MustRegister(CircuitBreakerState)

		prometheus.MustRegister(ActiveAlerts)
		prometheus.MustRegister(AuditLogEntries)
		prometheus.MustRegister(SubscriptionActions)
		prometheus.MustRegister(LogStreamClients)
	})
}
