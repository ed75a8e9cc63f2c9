// Package effects implements the engine's C10 component: a handful of
// stock per-source/master DSP units built against types.Effect. Each is
// in-place and non-allocating in its steady state, per spec §4.10.
package effects

import (
	"fmt"
	"math"

	"github.com/ownaudio/goaudio/pkg/types"
)

// Gain is a flat linear gain stage.
type Gain struct {
	Value   float32
	enabled bool
}

// NewGain creates an enabled gain stage at the given linear multiplier.
func NewGain(value float32) *Gain {
	return &Gain{Value: value, enabled: true}
}

func (g *Gain) Initialize(types.AudioConfig) error { return nil }

func (g *Gain) Process(buf []float32, frameCount int) error {
	if g.Value == 1.0 {
		return nil
	}
	for i := range buf {
		buf[i] *= g.Value
	}
	return nil
}

func (g *Gain) Enabled() bool     { return g.enabled }
func (g *Gain) SetEnabled(v bool) { g.enabled = v }
func (g *Gain) Name() string      { return "gain" }
func (g *Gain) Dispose() error    { return nil }

// Limiter is a hard clipper protecting downstream gear from sample
// overs, with a configurable linear ceiling; Process returns an error when
// the ceiling is not positive.
type Limiter struct {
	Ceiling float32
	enabled bool
}

// NewLimiter creates an enabled limiter at the given linear ceiling.
func NewLimiter(ceiling float32) *Limiter {
	return &Limiter{Ceiling: ceiling, enabled: true}
}

func (l *Limiter) Initialize(types.AudioConfig) error { return nil }

func (l *Limiter) Process(buf []float32, frameCount int) error {
	ceil := l.Ceiling
	if ceil <= 0 {
		return fmt.Errorf("effects: limiter ceiling must be positive, got %v", ceil)
	}
	for i, v := range buf {
		if v > ceil {
			buf[i] = ceil
		} else if v < -ceil {
			buf[i] = -ceil
		}
	}
	return nil
}

func (l *Limiter) Enabled() bool     { return l.enabled }
func (l *Limiter) SetEnabled(v bool) { l.enabled = v }
func (l *Limiter) Name() string      { return "limiter" }
func (l *Limiter) Dispose() error    { return nil }

// BiquadFilter is a direct-form-I biquad, usable as a low-pass/high-pass/
// peaking filter depending on the coefficients supplied. Stateful per
// channel so it carries no click artifacts across process calls.
type BiquadFilter struct {
	B0, B1, B2 float32
	A1, A2     float32

	channels int
	x1, x2   []float32 // per-channel input history
	y1, y2   []float32 // per-channel output history
	enabled  bool
	name     string
}

// NewLowPass builds a second-order RBJ low-pass biquad for the
// given sample rate and cutoff frequency (Hz), with Q = 0.707 (Butterworth).
func NewLowPass(sampleRate int, cutoffHz float64) *BiquadFilter {
	omega := 2 * math.Pi * cutoffHz / float64(sampleRate)
	alpha := math.Sin(omega) / (2 * 0.707)
	cosw := math.Cos(omega)

	b0 := (1 - cosw) / 2
	b1 := 1 - cosw
	b2 := (1 - cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return &BiquadFilter{
		B0: float32(b0 / a0), B1: float32(b1 / a0), B2: float32(b2 / a0),
		A1: float32(a1 / a0), A2: float32(a2 / a0),
		enabled: true,
		name:    "lowpass",
	}
}

func (f *BiquadFilter) Initialize(config types.AudioConfig) error {
	f.channels = config.Channels
	if f.channels <= 0 {
		f.channels = 1
	}
	f.x1 = make([]float32, f.channels)
	f.x2 = make([]float32, f.channels)
	f.y1 = make([]float32, f.channels)
	f.y2 = make([]float32, f.channels)
	return nil
}

func (f *BiquadFilter) Process(buf []float32, frameCount int) error {
	if f.channels == 0 {
		return fmt.Errorf("effects: biquad filter used before Initialize")
	}
	for i := 0; i < frameCount; i++ {
		for c := 0; c < f.channels; c++ {
			idx := i*f.channels + c
			if idx >= len(buf) {
				return nil
			}
			x0 := buf[idx]
			y0 := f.B0*x0 + f.B1*f.x1[c] + f.B2*f.x2[c] - f.A1*f.y1[c] - f.A2*f.y2[c]

			f.x2[c] = f.x1[c]
			f.x1[c] = x0
			f.y2[c] = f.y1[c]
			f.y1[c] = y0

			buf[idx] = y0
		}
	}
	return nil
}

func (f *BiquadFilter) Enabled() bool     { return f.enabled }
func (f *BiquadFilter) SetEnabled(v bool) { f.enabled = v }
func (f *BiquadFilter) Name() string      { return f.name }
func (f *BiquadFilter) Dispose() error    { return nil }
