// Package api implements the HTTP control plane for the Prism router.
package api

import (
	"net/http"

	"github.com/sugawarayuuta/sonnet"

	"github.com/petitstrawberry/prism/internal/config"
	"github.com/petitstrawberry/prism/internal/engine"
	"github.com/petitstrawberry/prism/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	router   Router
	resolver Resolver
	events   EventBus
	taps     CaptureTap
	info     models.Info
}

// Router is the interface the handlers use to talk to the engine.
type Router interface {
	Snapshot() []models.ClientEntry
	ApplyRouting(models.RoutingUpdate) (int, error)
	Stats() engine.Stats
	Config() config.Config
}

// Resolver enriches directory entries with process identity.
type Resolver interface {
	Enrich([]models.ClientEntry)
}

// EventBus is the interface for subscribing to directory change events.
type EventBus interface {
	Subscribe(id string) <-chan models.Directory
	Unsubscribe(id string)
}

// CaptureTap hands out per-cycle full-bus frames from the host clock.
// Nil when the daemon runs without a cycle clock.
type CaptureTap interface {
	SubscribeTap(id string) <-chan []float32
	UnsubscribeTap(id string)
}

// writeJSON writes a JSON response with the given status code.
// sonnet keeps encoding cheap on the directory/SSE hot path.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	// Marshal before touching the header so an encoding failure can still
	// report a 500 instead of a success status with an empty body.
	data, err := sonnet.Marshal(v)
	if err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes an AppError as a JSON response, mapping engine sentinel
// errors onto the API taxonomy.
func writeError(w http.ResponseWriter, err error) {
	switch err {
	case engine.ErrInvalidOffset:
		err = models.ErrInvalidOffset(err.Error())
	case engine.ErrNoSuchClient:
		err = models.ErrNoSuchClient(err.Error())
	}
	if appErr, ok := err.(*models.AppError); ok {
		writeJSON(w, appErr.Status, appErr)
		return
	}
	writeJSON(w, http.StatusInternalServerError, models.ErrInternal(err.Error()))
}
