package engine

// ring is the shared interleaved sample buffer: frames * channels float32
// samples, addressed by absolute sample time modulo frames. It is written
// and read concurrently without locks; correctness relies on writers staying
// inside their own channel pair and readers tolerating torn frames, which
// are bounded to one callback period.
type ring struct {
	buf      []float32
	frames   int
	channels int
}

func newRing(frames, channels int) *ring {
	return &ring{
		buf:      make([]float32, frames*channels),
		frames:   frames,
		channels: channels,
	}
}

// pos maps an absolute sample time onto a ring frame index.
func (rb *ring) pos(sampleTime float64) int {
	if sampleTime < 0 {
		return 0
	}
	return int(int64(sampleTime) % int64(rb.frames))
}

// writePair copies frames stereo frames from src (interleaved L/R) into the
// two bus channels at offset, starting at ring position pos and splitting
// the copy at the wrap boundary. Destination indices are bounds-checked
// before every store; the modulo math should make an overrun unreachable,
// but the ring must never write out of bounds even under a corrupted cycle
// time.
func (rb *ring) writePair(pos, frames, offset int, src []float32) {
	if len(src) < frames*2 {
		frames = len(src) / 2
	}
	untilWrap := rb.frames - pos
	head := frames
	if head > untilWrap {
		head = untilWrap
	}

	for i := 0; i < head; i++ {
		dst := (pos+i)*rb.channels + offset
		if dst+1 >= len(rb.buf) {
			continue
		}
		rb.buf[dst] = src[i*2]
		rb.buf[dst+1] = src[i*2+1]
	}

	for i := head; i < frames; i++ {
		dst := (i-head)*rb.channels + offset
		if dst+1 >= len(rb.buf) {
			continue
		}
		rb.buf[dst] = src[i*2]
		rb.buf[dst+1] = src[i*2+1]
	}
}

// readAll copies frames full bus frames starting at ring position pos into
// dst, splitting at the wrap boundary. dst must hold frames*channels
// samples; short destinations are truncated rather than overrun.
func (rb *ring) readAll(pos, frames int, dst []float32) {
	if frames*rb.channels > len(dst) {
		frames = len(dst) / rb.channels
	}
	// A window wider than the ring cannot be serviced; clamp so the wrap
	// tail below never reaches past the buffer.
	if frames > rb.frames {
		frames = rb.frames
	}
	untilWrap := rb.frames - pos
	head := frames
	if head > untilWrap {
		head = untilWrap
	}

	copy(dst[:head*rb.channels], rb.buf[pos*rb.channels:(pos+head)*rb.channels])
	if frames > head {
		rest := frames - head
		copy(dst[head*rb.channels:frames*rb.channels], rb.buf[:rest*rb.channels])
	}
}

// zeroPair clears one channel pair across frames frames of an already-copied
// interleaved output buffer (not the ring itself).
func (rb *ring) zeroPair(dst []float32, frames, offset int) {
	for i := 0; i < frames; i++ {
		idx := i*rb.channels + offset
		if idx+1 >= len(dst) {
			return
		}
		dst[idx] = 0
		dst[idx+1] = 0
	}
}
