// Package handler provides HTTP handlers for all API endpoints. Handlers
// validate input, call the record store or the condition providers, and
// publish notification events after successful operations.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/guanacaste-labs/climatrack/internal/api/respond"
	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/cache"
	"github.com/guanacaste-labs/climatrack/internal/config"
	"github.com/guanacaste-labs/climatrack/internal/provider"
	"github.com/guanacaste-labs/climatrack/internal/record"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store   record.Store
	events  *bus.Bus
	cache   *cache.Cache
	weather *provider.OpenWeather
	seismic *provider.USGS
	cfg     *config.Config
	dbPing  func(ctx context.Context) error
}

// Deps bundles the handler's collaborators. DBPing may be nil when no
// database is attached (tests against the in-memory store).
type Deps struct {
	Store   record.Store
	Events  *bus.Bus
	Cache   *cache.Cache
	Weather *provider.OpenWeather
	Seismic *provider.USGS
	Config  *config.Config
	DBPing  func(ctx context.Context) error
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	return &Handler{
		store:   d.Store,
		events:  d.Events,
		cache:   d.Cache,
		weather: d.Weather,
		seismic: d.Seismic,
		cfg:     d.Config,
		dbPing:  d.DBPing,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Climatrack API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.dbPing == nil || h.dbPing(r.Context()) != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckBus reports live subscriber statistics.
func (h *Handler) HealthCheckBus(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"subscribers": h.events.SubscriberCount(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
