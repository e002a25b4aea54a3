package api

import (
	"io"
	"net/http"

	"github.com/sugawarayuuta/sonnet"

	"github.com/petitstrawberry/prism/internal/models"
)

// state is the GET /api response: daemon info plus the current directory.
type state struct {
	Info    models.Info          `json:"info"`
	Clients []models.ClientEntry `json:"clients"`
}

func (h *Handlers) currentInfo() models.Info {
	info := h.info
	info.ActiveClients = h.router.Stats().ActiveClients
	return info
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	clients := h.router.Snapshot()
	if h.resolver != nil {
		h.resolver.Enrich(clients)
	}
	writeJSON(w, http.StatusOK, state{Info: h.currentInfo(), Clients: clients})
}

func (h *Handlers) getClients(w http.ResponseWriter, r *http.Request) {
	clients := h.router.Snapshot()
	if h.resolver != nil {
		h.resolver.Enrich(clients)
	}
	writeJSON(w, http.StatusOK, models.Directory{Clients: clients})
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentInfo())
}

// postRouting applies a routing update: {"pid": <pid|-1>, "channel_offset": n}.
func (h *Handlers) postRouting(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		writeError(w, models.ErrBadRequest("cannot read request body"))
		return
	}

	var req models.RoutingUpdate
	if err := sonnet.Unmarshal(body, &req); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	if req.PID == 0 {
		writeError(w, models.ErrBadRequest("pid is required (use -1 for broadcast)"))
		return
	}

	updated, err := h.router.ApplyRouting(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RoutingResult{Updated: updated})
}
