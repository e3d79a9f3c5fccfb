package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaspardpetit/wspush/server/internal/config"
	"github.com/gaspardpetit/wspush/server/internal/hub"
	"github.com/gaspardpetit/wspush/server/internal/metrics"
)

// New constructs the HTTP handler for the server. The collectors are
// registered with preg, which also backs /metrics when the metrics address
// matches the public port.
func New(cfg config.ServerConfig, h *hub.Hub, preg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	if preg == nil {
		preg = prometheus.NewRegistry()
	}
	metrics.Register(preg)

	r.Get("/healthz", HealthHandler())
	r.Get("/ws", h.ServeHTTP)
	r.Route("/api", func(ar chi.Router) {
		ar.Get("/connections", ConnectionsHandler(h))
	})

	if cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port) {
		r.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	}

	return r
}

// MetricsHandler serves preg on a dedicated listener.
func MetricsHandler(preg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(preg, promhttp.HandlerOpts{}))
	return mux
}
