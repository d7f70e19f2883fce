package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const keepAliveInterval = 15 * time.Second

// streamEvents writes every value from ch as a server-sent event named event
// until the client goes away or ch is closed. Comment lines keep idle
// connections open.
func streamEvents[T any](rs responder, w http.ResponseWriter, r *http.Request, event string, ch <-chan T, render func(T) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		rs.respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(render(v))
			if err != nil {
				rs.log.Error("failed to encode event", slog.String("event", event), slog.Any("error", err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func identity[T any](v T) any { return v }
