package host

import "math"

// Tone is a synthetic playback client producing a fixed-frequency sine,
// used in mock mode so the bus carries audible, recognizable signal.
type Tone struct {
	clientID   uint32
	pid        int32
	freq       float64
	amplitude  float64
	sampleRate float64
	phase      float64
}

// NewTone creates a tone client. clientID must be nonzero.
func NewTone(clientID uint32, pid int32, freq, amplitude, sampleRate float64) *Tone {
	return &Tone{
		clientID:   clientID,
		pid:        pid,
		freq:       freq,
		amplitude:  amplitude,
		sampleRate: sampleRate,
	}
}

func (t *Tone) ClientID() uint32 { return t.clientID }
func (t *Tone) PID() int32       { return t.pid }

// Fill writes frames of the sine into buf as interleaved stereo.
func (t *Tone) Fill(buf []float32, frames int) {
	step := 2 * math.Pi * t.freq / t.sampleRate
	for i := 0; i < frames; i++ {
		s := float32(t.amplitude * math.Sin(t.phase))
		buf[i*2] = s
		buf[i*2+1] = s
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}
