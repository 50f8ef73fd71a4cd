// Package httpapi implements the crawler's small always-on HTTP
// surface, split across two routers the way the teacher's own server
// carries both go-chi and gorilla/mux side by side for different
// surfaces: a chi-based metrics/health router, and a mux-based
// control-plane router for runtime tuning. Neither router touches the
// Frontier, Worker pool, or Writer directly.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRouter serves process liveness and Prometheus exposition.
// It never reads application state beyond the registry it is handed.
func MetricsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
