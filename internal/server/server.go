// Package server assembles the gateway HTTP surface.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ainova/novagate/internal/api"
	"github.com/ainova/novagate/internal/config"
	"github.com/ainova/novagate/internal/export"
	"github.com/ainova/novagate/internal/inflight"
	"github.com/ainova/novagate/internal/metrics"
	"github.com/ainova/novagate/internal/modes"
	"github.com/ainova/novagate/internal/relay"
)

// Deps are the collaborators built at startup and shared by all requests.
type Deps struct {
	Modes   *modes.Registry
	Relayer *relay.Relayer
	// Relays counts generate calls a graceful shutdown waits for.
	Relays *inflight.Counter
	// Metrics receives the gateway collectors; a fresh registry is used when nil.
	Metrics *prometheus.Registry
	Version string
}

// New constructs the HTTP handler for the gateway.
func New(cfg config.ServerConfig, d Deps) http.Handler {
	if d.Relayer == nil {
		d.Relayer = relay.NewRelayer(cfg.IdleTimeout)
	}
	if d.Relays == nil {
		d.Relays = &inflight.Counter{}
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.NewRegistry()
	}
	metrics.Register(d.Metrics)

	r := chi.NewRouter()
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Content-Disposition"},
		}))
	}
	for _, m := range api.MiddlewareChain() {
		r.Use(m)
	}

	healthClient := &http.Client{Timeout: 10 * time.Second}
	r.Get("/healthz", api.HealthzHandler())
	r.Get("/health", api.HealthHandler(healthClient, cfg.HealthURL))

	r.Route("/api", func(ar chi.Router) {
		ar.Route("/client", func(cr chi.Router) {
			cr.Get("/openapi.json", api.OpenAPIHandler(d.Modes, d.Version))
			cr.Get("/*", api.SwaggerHandler())
		})
		ar.Group(func(g chi.Router) {
			g.Use(api.APIKeyMiddleware(cfg.APIKey))
			g.With(d.Relays.Middleware()).Post("/generate", api.GenerateHandler(d.Modes, d.Relayer, cfg.MaxBodyBytes))
			g.Post("/download-csv", api.ExportHandler(export.CSV{}, cfg.MaxBodyBytes))
			g.Post("/download-excel", api.ExportHandler(export.XLSX{}, cfg.MaxBodyBytes))
			g.Post("/download-pdf", api.ExportHandler(export.PDF{FontDir: cfg.PDFFontDir}, cfg.MaxBodyBytes))
			g.Get("/modes", api.ModesHandler(d.Modes))
			g.Get("/state", api.StateHandler(d.Relays))
		})
	})

	if cfg.SharesMetricsPort() {
		r.Handle("/metrics", MetricsHandler(d.Metrics))
	}
	return r
}

// MetricsHandler exposes reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
