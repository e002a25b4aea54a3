package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petitstrawberry/prism/internal/models"
)

// NewRouter creates and returns the control-plane HTTP router.
// taps may be nil when no cycle clock is running; /api/capture then returns
// 503.
func NewRouter(router Router, resolver Resolver, bus EventBus, taps CaptureTap, reg *prometheus.Registry, info models.Info) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{router: router, resolver: resolver, events: bus, taps: taps, info: info}

	// Directory and state
	r.Get("/api", h.getState)
	r.Get("/api/", h.getState)
	r.Get("/api/clients", h.getClients)
	r.Get("/api/info", h.getInfo)

	// Routing control
	r.Post("/api/routing", h.postRouting)

	// SSE directory stream
	r.Get("/api/subscribe", h.sseEvents)

	// Raw capture tap
	r.Get("/api/capture", h.getCapture)

	// Prometheus
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
