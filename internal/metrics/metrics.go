package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_api_request_duration_seconds",
			Help:    "API request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Tenancy routing metrics.
var (
	// GateDecisionsTotal counts request gate outcomes: passthrough,
	// rewrite, redirect_login, unscoped.
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_gate_decisions_total",
			Help: "Request gate routing decisions",
		},
		[]string{"decision"},
	)

	// HostResolutionsTotal counts host resolver outcomes by source:
	// domain, subdomain, none, error.
	HostResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_host_resolutions_total",
			Help: "Host-to-tenant resolution outcomes",
		},
		[]string{"outcome"},
	)

	// AuthzChecksTotal counts guard verdicts: granted, unauthenticated,
	// forbidden, tenant_not_found.
	AuthzChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_authz_checks_total",
			Help: "Role authorization guard verdicts",
		},
		[]string{"verdict"},
	)
)
