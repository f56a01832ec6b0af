package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesEvaluated counts classified messages by verdict.
	MessagesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_messages_evaluated_total",
		Help: "Total number of messages classified by the policy matcher",
	}, []string{"verdict"})

	// RuleRegistrations counts runtime rule registrations by kind and result.
	RuleRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_rule_registrations_total",
		Help: "Total number of runtime rule registrations",
	}, []string{"kind", "result"})

	// ModerationActions counts moderation actions applied through the gateway.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_moderation_actions_total",
		Help: "Total number of moderation actions by type and result",
	}, []string{"action_type", "result"})

	// LedgerAppends counts ledger appends by action type and outcome.
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_ledger_appends_total",
		Help: "Total number of ledger append attempts",
	}, []string{"action_type", "result"})

	// LedgerQueryFailures counts degraded ledger reads by operation.
	LedgerQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_ledger_query_failures_total",
		Help: "Total number of ledger reads that degraded to an empty result",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatwarden_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CountCacheLookups counts stats cache lookups by result.
	CountCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_count_cache_lookups_total",
		Help: "Total number of ledger count cache lookups",
	}, []string{"result"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// GatewayRequests counts Bot API calls by method and result.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwarden_gateway_requests_total",
		Help: "Total number of messaging gateway calls by method and result",
	}, []string{"method", "result"})

	// UpdatesReceived counts inbound updates pulled from the gateway.
	UpdatesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatwarden_updates_received_total",
		Help: "Total number of inbound updates received",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// Result maps an error to a metrics label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Verdict label values for MessagesEvaluated.
const (
	VerdictClean     = "clean"
	VerdictViolating = "violating"
)

// VerdictLabel maps a classification to its MessagesEvaluated label.
func VerdictLabel(violates bool) string {
	if violates {
		return VerdictViolating
	}
	return VerdictClean
}
