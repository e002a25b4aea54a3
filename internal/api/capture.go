package api

import (
	"encoding/binary"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/petitstrawberry/prism/internal/models"
)

// getCapture streams one channel pair of the live bus as raw little-endian
// float32 interleaved stereo. ?offset selects the pair; 0 taps the system
// mix channels. The stream runs until the client disconnects.
func (h *Handlers) getCapture(w http.ResponseWriter, r *http.Request) {
	if h.taps == nil {
		writeError(w, &models.AppError{Code: "NO_CLOCK", Message: "no cycle clock is running", Status: http.StatusServiceUnavailable})
		return
	}

	cfg := h.router.Config()
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, models.ErrBadRequest("offset must be an integer"))
			return
		}
		offset = n
	}
	if offset < 0 || offset%2 != 0 || offset+1 >= cfg.BusChannels {
		writeError(w, models.ErrInvalidOffset("offset must address a channel pair inside the bus"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Prism-Sample-Rate", strconv.FormatFloat(cfg.SampleRate, 'f', -1, 64))
	w.Header().Set("X-Prism-Channels", "2")
	w.Header().Set("X-Prism-Format", "f32le")

	id := uuid.New().String()
	ch := h.taps.SubscribeTap(id)
	defer h.taps.UnsubscribeTap(id)

	out := make([]byte, 0)
	for {
		select {
		case bus, ok := <-ch:
			if !ok {
				return
			}
			frames := len(bus) / cfg.BusChannels
			if cap(out) < frames*2*4 {
				out = make([]byte, frames*2*4)
			}
			out = out[:frames*2*4]
			for i := 0; i < frames; i++ {
				l := bus[i*cfg.BusChannels+offset]
				rr := bus[i*cfg.BusChannels+offset+1]
				binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(l))
				binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(rr))
			}
			if _, err := w.Write(out); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
