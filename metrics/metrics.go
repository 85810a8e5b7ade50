package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yeti_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	AuthorizationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_authorization_denials_total",
			Help: "Total number of requests rejected by permission, role or group checks",
		},
		[]string{"action"},
	)

	AuthenticationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_authentication_failures_total",
			Help: "Total number of rejected bearer tokens",
		},
		[]string{"reason"},
	)

	GroupMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_group_mutations_total",
			Help: "Total number of group writes by operation",
		},
		[]string{"operation"},
	)

	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_search_queries_total",
			Help: "Total number of search requests by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)

	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yeti_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)

	TTPsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yeti_ttps_imported_total",
			Help: "Total number of TTPs created through the API or the import command",
		},
	)
)
