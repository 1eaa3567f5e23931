package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arverne/softsell/internal/router"
)

// RegisterSystemRoutes registers health and metrics endpoints. These sit
// outside the API middleware chain so a struggling database or a scrape
// never competes with checkout rate limits.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/health", deps.Health.Check)
	r.Handle("GET", "/metrics", promhttp.Handler())
}
