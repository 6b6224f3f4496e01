// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_role_resolutions_total",
			Help: "Role resolutions by outcome (admin, user, no_entry, super_admin, error).",
		},
		[]string{"result"},
	)

	CallableInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_callable_invocations_total",
			Help: "Callable function invocations by function and result kind.",
		},
		[]string{"function", "result"},
	)

	OrphanedIdentities = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "erp_orphaned_identities_total",
			Help: "Identities left without a directory entry after a failed compensation.",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry through fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
