// Package engine implements the Prism channel router: a fixed-capacity
// client registry and a shared multi-channel ring buffer, exercised once per
// audio cycle by concurrent host callback threads and reconfigured
// out-of-band by the routing control path.
//
// Nothing on the DoIO path locks, blocks, allocates, or logs. All
// synchronization is per-field atomic loads and stores; conditions that
// would be errors elsewhere (unrouted client, evicted slot, bad offset) are
// silent no-ops with a defined, testable effect.
package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/petitstrawberry/prism/internal/config"
	"github.com/petitstrawberry/prism/internal/models"
)

// Operation selects what a DoIO call does with the host buffer.
type Operation int

const (
	// OpClientWrite delivers one playback client's stereo frames into its
	// assigned channel pair on the bus.
	OpClientWrite Operation = iota
	// OpSystemMixWrite delivers the host's mixed output into the reserved
	// system channels 0-1.
	OpSystemMixWrite
	// OpCaptureRead copies the full bus out to a capture client, zeroing
	// channel pairs whose data is stale for the requested window.
	OpCaptureRead
)

// Stream ids of the virtual device, matching the host-facing adapter.
const (
	StreamCapture  uint32 = 3
	StreamPlayback uint32 = 4
)

// mixChannels is the number of reserved system-mix channels at the start of
// the bus. Client pairs may never alias them.
const mixChannels = 2

// Selector identifies which exported property a notification refers to.
type Selector string

const (
	// SelectorClientList fires after any successful registry mutation.
	SelectorClientList Selector = "client_list"
	// SelectorDeviceRunning fires when IO starts or stops.
	SelectorDeviceRunning Selector = "device_running"
)

// Notifier is the callback-shaped hook into the host notification mechanism.
// It is invoked from control-plane paths only, never from DoIO.
type Notifier func(Selector)

// Stats is a point-in-time sample of the engine's I/O counters.
type Stats struct {
	ClientWrites  uint64
	DroppedWrites uint64
	MixWrites     uint64
	CaptureReads  uint64
	StaleZeroed   uint64
	ActiveClients int
}

// Engine is the router instance. One per process in practice, but owned and
// passed explicitly — there is no package-level singleton.
type Engine struct {
	cfg config.Config
	reg registry
	rb  *ring

	notify Notifier

	clientCount atomic.Int32
	anchorNanos atomic.Int64
	// lastMixWriteTime holds Float64bits of the sample time covered by the
	// most recent system mix write.
	lastMixWriteTime atomic.Uint64

	clientWrites  atomic.Uint64
	droppedWrites atomic.Uint64
	mixWrites     atomic.Uint64
	captureReads  atomic.Uint64
	staleZeroed   atomic.Uint64
}

// New creates an engine with the given geometry. The ring buffer is
// allocated once here and never resized.
func New(cfg config.Config) *Engine {
	return &Engine{
		cfg: cfg,
		rb:  newRing(cfg.RingFrames, cfg.BusChannels),
	}
}

// SetNotifier installs the host notification callback. Call before the
// first client joins; a nil notifier disables notifications.
func (e *Engine) SetNotifier(n Notifier) { e.notify = n }

// Config returns the engine geometry.
func (e *Engine) Config() config.Config { return e.cfg }

func (e *Engine) fire(sel Selector) {
	if e.notify != nil {
		e.notify(sel)
	}
}

// validPairOffset reports whether offset addresses a routable client pair:
// even, past the reserved mix channels, and fully inside the bus.
func (e *Engine) validPairOffset(offset int) bool {
	return offset >= mixChannels && offset%2 == 0 && offset+1 < e.cfg.BusChannels
}

// Join registers a client in the directory, unrouted (offset 0) until the
// control plane assigns it a channel pair. A colliding join evicts the
// previous occupant of the slot.
func (e *Engine) Join(clientID uint32, pid int32) {
	if e.reg.join(clientID, pid) {
		e.fire(SelectorClientList)
	}
}

// Leave removes a client from the directory. Idempotent, and a no-op when
// the slot has since been taken over by a different client.
func (e *Engine) Leave(clientID uint32, pid int32) {
	if e.reg.leave(clientID, pid) {
		e.fire(SelectorClientList)
	}
}

// Snapshot exports the client directory, ordered by slot index.
func (e *Engine) Snapshot() []models.ClientEntry {
	return e.reg.snapshot()
}

// DoIO is the per-cycle entry point. buf is the host-supplied interleaved
// buffer: stereo frames for the write operations, full-bus frames for
// capture. sampleTime is the host cycle timestamp in frames.
//
// DoIO never fails: anything that cannot be serviced is dropped, favoring
// silence over corruption.
func (e *Engine) DoIO(op Operation, streamID, clientID uint32, frames int, sampleTime float64, buf []float32) {
	if frames <= 0 || len(buf) == 0 || sampleTime < 0 {
		return
	}

	switch op {
	case OpClientWrite:
		if streamID != StreamPlayback {
			return
		}
		e.clientWrite(clientID, frames, sampleTime, buf)
	case OpSystemMixWrite:
		if streamID != StreamPlayback {
			return
		}
		e.rb.writePair(e.rb.pos(sampleTime), frames, 0, buf)
		e.lastMixWriteTime.Store(math.Float64bits(sampleTime + float64(frames)))
		e.mixWrites.Add(1)
	case OpCaptureRead:
		if streamID != StreamCapture {
			return
		}
		e.captureRead(frames, sampleTime, buf)
	}
}

// clientWrite copies a playback client's stereo input into its assigned
// pair, then stamps the slot's write frontier.
func (e *Engine) clientWrite(clientID uint32, frames int, sampleTime float64, buf []float32) {
	s := &e.reg.slots[clientID&slotMask]
	if s.clientID.Load() != clientID {
		// Evicted or never joined; not an error, just no destination.
		e.droppedWrites.Add(1)
		return
	}
	offset := int(s.channelOffset.Load())
	if !e.validPairOffset(offset) {
		// Unrouted (offset 0) or out of bounds; the write has no effect.
		e.droppedWrites.Add(1)
		return
	}

	e.rb.writePair(e.rb.pos(sampleTime), frames, offset, buf)

	// Release-store after the copy: a capture thread that observes this
	// frontier also observes the samples behind it.
	s.lastWriteTime.Store(math.Float64bits(sampleTime + float64(frames)))
	e.clientWrites.Add(1)
}

// captureRead copies the whole bus for [sampleTime, sampleTime+frames) into
// buf, then zeroes every routed pair whose write frontier does not cover the
// window. The staleness pass runs once per active slot regardless of how
// many clients are capturing.
func (e *Engine) captureRead(frames int, sampleTime float64, buf []float32) {
	e.rb.readAll(e.rb.pos(sampleTime), frames, buf)

	windowEnd := sampleTime + float64(frames)
	for i := range e.reg.slots {
		s := &e.reg.slots[i]
		if s.clientID.Load() == 0 {
			continue
		}
		offset := int(s.channelOffset.Load())
		if !e.validPairOffset(offset) {
			continue
		}
		lastWrite := math.Float64frombits(s.lastWriteTime.Load())
		if windowEnd > lastWrite {
			e.rb.zeroPair(buf, frames, offset)
			e.staleZeroed.Add(1)
		}
	}
	e.captureReads.Add(1)
}

// StartIO notes one more client running IO. The first starter anchors the
// device timeline.
func (e *Engine) StartIO() {
	if e.clientCount.Add(1) == 1 {
		e.anchorNanos.Store(time.Now().UnixNano())
		e.fire(SelectorDeviceRunning)
	}
}

// StopIO notes one client stopping IO. The last stopper clears the anchor.
func (e *Engine) StopIO() {
	if e.clientCount.Add(-1) == 0 {
		e.anchorNanos.Store(0)
		e.fire(SelectorDeviceRunning)
	}
}

// Running reports whether any client is doing IO.
func (e *Engine) Running() bool { return e.clientCount.Load() > 0 }

// ZeroTimestamp returns the next zero-timestamp crossing after now:
// the sample time, the corresponding host time in nanoseconds, and the
// timeline seed. All zeros while IO is stopped.
func (e *Engine) ZeroTimestamp(now time.Time) (sampleTime float64, hostNanos int64, seed uint64) {
	anchor := e.anchorNanos.Load()
	if anchor == 0 {
		return 0, 0, 0
	}

	nanosPerFrame := 1e9 / e.cfg.SampleRate
	period := float64(e.cfg.ZeroTimestampPeriod)
	nanosPerPeriod := nanosPerFrame * period

	elapsed := now.UnixNano() - anchor
	if elapsed < 0 {
		elapsed = 0
	}
	next := math.Floor(float64(elapsed)/nanosPerPeriod) + 1

	return next * period, anchor + int64(next*nanosPerPeriod), 1
}

// Stats samples the I/O counters. Safe to call concurrently with IO.
func (e *Engine) Stats() Stats {
	return Stats{
		ClientWrites:  e.clientWrites.Load(),
		DroppedWrites: e.droppedWrites.Load(),
		MixWrites:     e.mixWrites.Load(),
		CaptureReads:  e.captureReads.Load(),
		StaleZeroed:   e.staleZeroed.Load(),
		ActiveClients: e.reg.activeCount(),
	}
}
