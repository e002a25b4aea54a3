package engine

import (
	"errors"

	"github.com/petitstrawberry/prism/internal/models"
)

// Routing control errors, surfaced synchronously to the control plane.
var (
	// ErrInvalidOffset rejects a channel offset that is odd, inside the
	// reserved mix channels, or past the end of the bus.
	ErrInvalidOffset = errors.New("channel offset must be even, >= 2, and inside the bus")
	// ErrNoSuchClient reports a pid-targeted request that matched no slot.
	// A normal "not found" outcome, not a fault.
	ErrNoSuchClient = errors.New("no active client with that pid")
)

// ApplyRouting changes which channel pair the matching clients write to.
// PID -1 broadcasts the offset to every active slot; broadcast is a
// privileged bulk operation and succeeds even when zero slots are active.
// The offset takes effect on each client's next IO cycle once the store is
// visible; there is no synchronization with in-flight cycles.
func (e *Engine) ApplyRouting(req models.RoutingUpdate) (int, error) {
	if !e.validPairOffset(req.ChannelOffset) {
		return 0, ErrInvalidOffset
	}

	broadcast := req.PID == models.BroadcastPID
	updated := e.reg.setOffset(req.PID, broadcast, req.ChannelOffset)
	if !broadcast && updated == 0 {
		return 0, ErrNoSuchClient
	}

	if updated > 0 {
		e.fire(SelectorClientList)
	}
	return updated, nil
}
