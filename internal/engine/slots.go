package engine

import (
	"sync/atomic"

	"github.com/petitstrawberry/prism/internal/models"
)

// MaxClients is the size of the client registry. Slots are addressed by
// clientID & (MaxClients-1), so this must stay a power of two.
const MaxClients = 4096

const slotMask = MaxClients - 1

// slot is one client registry entry. Every field is an independently
// synchronized atomic scalar; there is deliberately no cross-field atomicity.
// A clientID of zero means the slot is free — zero is never a valid id.
type slot struct {
	clientID      atomic.Uint32
	channelOffset atomic.Int64
	pid           atomic.Int32
	// lastWriteTime holds the math.Float64bits of the absolute sample time
	// up to which this client's ring channels contain valid data.
	lastWriteTime atomic.Uint64
}

// registry is the fixed-size, direct-indexed client table.
type registry struct {
	slots [MaxClients]slot
}

// join activates the slot for clientID. If a different client already
// occupies the slot the previous occupant is evicted: the table is
// direct-indexed, and last-writer-wins is the accepted collision policy.
// Joining resets the client to unrouted (offset 0) with no valid data.
func (r *registry) join(clientID uint32, pid int32) bool {
	if clientID == 0 {
		return false
	}
	s := &r.slots[clientID&slotMask]
	s.channelOffset.Store(0)
	s.lastWriteTime.Store(0)
	s.pid.Store(pid)
	// Publishing the id last makes the slot visible to readers only after
	// the other fields hold this client's values.
	s.clientID.Store(clientID)
	return true
}

// leave frees the slot only if clientID still owns it. A stale leave racing
// a newer join into the same slot is a no-op, so the second occupant's state
// is never corrupted.
func (r *registry) leave(clientID uint32, pid int32) bool {
	if clientID == 0 {
		return false
	}
	s := &r.slots[clientID&slotMask]
	if s.clientID.Load() != clientID {
		return false
	}
	s.clientID.Store(0)
	s.channelOffset.Store(0)
	s.pid.Store(0)
	s.lastWriteTime.Store(0)
	return true
}

// setOffset stores offset into every active slot owned by pid, or into every
// active slot when all is set. Returns the number of slots updated.
func (r *registry) setOffset(pid int32, all bool, offset int) int {
	updated := 0
	for i := range r.slots {
		s := &r.slots[i]
		if s.clientID.Load() == 0 {
			continue
		}
		if !all && s.pid.Load() != pid {
			continue
		}
		s.channelOffset.Store(int64(offset))
		updated++
	}
	return updated
}

// snapshot emits one entry per occupied slot, in slot order. It is a pure
// read pass racing freely with joins, leaves and routing updates; each field
// is individually valid but the entry as a whole may be torn.
func (r *registry) snapshot() []models.ClientEntry {
	entries := make([]models.ClientEntry, 0, 16)
	for i := range r.slots {
		s := &r.slots[i]
		id := s.clientID.Load()
		if id == 0 {
			continue
		}
		entries = append(entries, models.ClientEntry{
			PID:           s.pid.Load(),
			ClientID:      id,
			ChannelOffset: int(s.channelOffset.Load()),
		})
	}
	return entries
}

// activeCount counts occupied slots.
func (r *registry) activeCount() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].clientID.Load() != 0 {
			n++
		}
	}
	return n
}
