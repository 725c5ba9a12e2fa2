package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/guanacaste-labs/climatrack/internal/api/respond"
)

// StreamEvents serves GET /api/v1/events: a server-sent-events bridge from
// the notification bus to live clients. Delivery is best-effort — events
// published before the client attached are never replayed, and a client
// that cannot keep up misses events rather than stalling publishers.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.WriteError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming is not supported")
		return
	}

	sub := h.events.Subscribe()
	defer h.events.Unsubscribe(sub.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected %s\n\n", sub.ID())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: database_update\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
