package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sugawarayuuta/sonnet"

	"github.com/petitstrawberry/prism/internal/models"
)

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive the current directory immediately, then a snapshot on
// every registry change.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	// Verify the client supports streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	// Send the current directory immediately
	sendSSE(w, flusher, models.Directory{Clients: h.router.Snapshot()})

	for {
		select {
		case dir, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, dir)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v interface{}) {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
