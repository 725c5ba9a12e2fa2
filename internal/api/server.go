// Package api wires the Chi router: middleware stack, health and docs
// surfaces, and the versioned record/condition/event routes.
package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/guanacaste-labs/climatrack/internal/api/handler"
	"github.com/guanacaste-labs/climatrack/internal/auth"
	"github.com/guanacaste-labs/climatrack/internal/config"
)

// Hand-maintained OpenAPI document served under /docs.
//
//go:embed doc.json
var openAPIDoc []byte

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, resolver auth.Resolver, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/bus", h.HealthCheckBus)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI over the embedded OpenAPI document.
	r.Get("/docs/doc.json", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(openAPIDoc)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public condition passthrough
		r.Get("/weather", h.CurrentWeather)
		r.Get("/seismic", h.SeismicEvents)

		// Live notification stream
		r.Get("/events", h.StreamEvents)

		// Per-subject record log (authenticated)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(resolver))
			r.Get("/records", h.ListRecords)
			r.Post("/records", h.CreateRecord)
			r.Delete("/records/{recordID}", h.DeleteRecord)
		})
	})

	return r
}
