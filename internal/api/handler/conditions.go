package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/guanacaste-labs/climatrack/internal/api/respond"
	"github.com/guanacaste-labs/climatrack/internal/cache"
	"github.com/guanacaste-labs/climatrack/internal/provider"
)

// CurrentWeather serves GET /api/v1/weather: normalized current conditions
// straight from the provider, cached briefly to spare the upstream.
func (h *Handler) CurrentWeather(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		city = h.cfg.DefaultCity
	}
	country := r.URL.Query().Get("country")
	if country == "" {
		country = h.cfg.DefaultCountry
	}

	key := fmt.Sprintf("weather:%s:%s", city, country)
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLWeather, true)
		return
	}

	snap, err := h.weather.Current(r.Context(), city, country)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode conditions")
		return
	}
	etag := h.cache.Set(key, data, cache.TTLWeather)
	respond.WriteJSON(w, data, etag, cache.TTLWeather, false)
}

// SeismicEvents serves GET /api/v1/seismic: USGS FDSN GeoJSON passthrough.
func (h *Handler) SeismicEvents(w http.ResponseWriter, r *http.Request) {
	q := provider.DefaultSeismicQuery()

	var err error
	if v := r.URL.Query().Get("min_magnitude"); v != "" {
		if q.MinMagnitude, err = strconv.ParseFloat(v, 64); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "min_magnitude must be a number")
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer")
			return
		}
	}
	if v := r.URL.Query().Get("latitude"); v != "" {
		if q.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "latitude must be a number")
			return
		}
	}
	if v := r.URL.Query().Get("longitude"); v != "" {
		if q.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "longitude must be a number")
			return
		}
	}
	if v := r.URL.Query().Get("maxradiuskm"); v != "" {
		if q.MaxRadiusKM, err = strconv.ParseFloat(v, 64); err != nil {
			respond.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "maxradiuskm must be a number")
			return
		}
	}

	key := fmt.Sprintf("seismic:%v:%d:%v:%v:%v", q.MinMagnitude, q.Limit, q.Latitude, q.Longitude, q.MaxRadiusKM)
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLSeismic, true)
		return
	}

	feed, err := h.seismic.Events(r.Context(), q)
	if err != nil {
		respond.WriteError(w, http.StatusBadGateway, "PROVIDER_ERROR", err.Error())
		return
	}
	etag := h.cache.Set(key, feed, cache.TTLSeismic)
	respond.WriteJSON(w, feed, etag, cache.TTLSeismic, false)
}
