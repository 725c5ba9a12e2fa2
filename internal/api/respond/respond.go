// Package respond holds the JSON response helpers shared by all handlers.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the wire shape of every API error.
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

// WriteJSONObject marshals v and writes it with the given status.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError sends the standard error envelope. Errors are never cacheable.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errorBody{Code: code, Message: message}})
}

// WriteJSON writes pre-serialized bytes with ETag and freshness headers. The
// TTL drives max-age; stale-while-revalidate gets half of it.
func WriteJSON(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	maxAge := int(ttl.Seconds())

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
	if cacheHit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WriteNotModified answers a conditional request whose ETag still matches.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}
