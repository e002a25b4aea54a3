// Package host drives the engine the way a real audio host would: one cycle
// per buffer period, writes before reads, monotonic sample times.
//
// The CoreAudio plugin adapter is out of scope here; this package stands in
// for it so the daemon can run self-contained. Unlike the engine's realtime
// contract, this layer is ordinary Go code and is free to allocate.
package host

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/petitstrawberry/prism/internal/config"
	"github.com/petitstrawberry/prism/internal/engine"
)

const tapBufferSize = 16

// Writer produces one playback client's stereo frames each cycle.
type Writer interface {
	ClientID() uint32
	PID() int32
	// Fill writes frames interleaved stereo samples into buf.
	Fill(buf []float32, frames int)
}

// Clock runs the cycle loop: it paces itself to the configured sample rate,
// feeds each registered writer into the engine, then captures the full bus
// and fans the frames out to taps.
type Clock struct {
	eng    *engine.Engine
	cfg    config.Config
	frames int

	mu      sync.Mutex
	writers []Writer
	taps    map[string]chan []float32
}

// NewClock creates a clock for the engine's geometry.
func NewClock(eng *engine.Engine) *Clock {
	cfg := eng.Config()
	return &Clock{
		eng:    eng,
		cfg:    cfg,
		frames: cfg.FrameSize,
		taps:   make(map[string]chan []float32),
	}
}

// AddWriter registers a synthetic playback client and joins it to the bus.
func (c *Clock) AddWriter(w Writer) {
	c.mu.Lock()
	c.writers = append(c.writers, w)
	c.mu.Unlock()
	c.eng.Join(w.ClientID(), w.PID())
}

// SubscribeTap starts receiving full-bus capture frames. Each message is one
// cycle's interleaved samples (frames x bus channels). Slow taps lose cycles
// rather than stalling the clock.
func (c *Clock) SubscribeTap(id string) <-chan []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan []float32, tapBufferSize)
	c.taps[id] = ch
	return ch
}

// UnsubscribeTap stops a tap and closes its channel.
func (c *Clock) UnsubscribeTap(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.taps[id]; ok {
		delete(c.taps, id)
		close(ch)
	}
}

// TapCount returns the number of active taps.
func (c *Clock) TapCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.taps)
}

// Run drives cycles until ctx is done. It owns the device's running state:
// StartIO on entry, StopIO and writer leave on exit.
func (c *Clock) Run(ctx context.Context) error {
	c.eng.StartIO()
	defer c.eng.StopIO()
	defer func() {
		c.mu.Lock()
		writers := append([]Writer(nil), c.writers...)
		c.mu.Unlock()
		for _, w := range writers {
			c.eng.Leave(w.ClientID(), w.PID())
		}
	}()

	cyclesPerSecond := c.cfg.SampleRate / float64(c.frames)
	limiter := rate.NewLimiter(rate.Limit(cyclesPerSecond), 1)

	stereo := make([]float32, c.frames*2)
	bus := make([]float32, c.frames*c.cfg.BusChannels)
	sampleTime := 0.0

	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		c.mu.Lock()
		writers := append([]Writer(nil), c.writers...)
		c.mu.Unlock()

		for _, w := range writers {
			w.Fill(stereo, c.frames)
			c.eng.DoIO(engine.OpClientWrite, engine.StreamPlayback, w.ClientID(), c.frames, sampleTime, stereo)
		}

		c.eng.DoIO(engine.OpCaptureRead, engine.StreamCapture, 0, c.frames, sampleTime, bus)
		c.fanOut(bus)

		sampleTime += float64(c.frames)
	}
}

func (c *Clock) fanOut(bus []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.taps) == 0 {
		return
	}
	for _, ch := range c.taps {
		frame := make([]float32, len(bus))
		copy(frame, bus)
		select {
		case ch <- frame:
		default:
			// Tap is behind; skip this cycle for it.
		}
	}
}
