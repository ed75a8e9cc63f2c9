package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownaudio/goaudio/pkg/types"
)

func TestGainScalesBuffer(t *testing.T) {
	g := NewGain(0.5)
	buf := []float32{1, 2, 3, 4}
	require.NoError(t, g.Process(buf, 4))
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, buf)
}

func TestGainUnityIsNoop(t *testing.T) {
	g := NewGain(1.0)
	buf := []float32{0.25, -0.75}
	require.NoError(t, g.Process(buf, 2))
	assert.Equal(t, []float32{0.25, -0.75}, buf)
}

func TestGainEnabledDefaultsTrue(t *testing.T) {
	g := NewGain(2.0)
	assert.True(t, g.Enabled())
	g.SetEnabled(false)
	assert.False(t, g.Enabled())
}

func TestLimiterClampsOvers(t *testing.T) {
	l := NewLimiter(1.0)
	buf := []float32{1.5, -1.5, 0.5, -0.5}
	require.NoError(t, l.Process(buf, 4))
	assert.Equal(t, []float32{1.0, -1.0, 0.5, -0.5}, buf)
}

func TestLimiterRejectsNonPositiveCeiling(t *testing.T) {
	l := NewLimiter(0)
	err := l.Process([]float32{1}, 1)
	assert.Error(t, err)
}

func TestLimiterName(t *testing.T) {
	l := NewLimiter(1.0)
	assert.Equal(t, "limiter", l.Name())
}

func TestBiquadLowPassAttenuatesHighFrequency(t *testing.T) {
	f := NewLowPass(48000, 200)
	require.NoError(t, f.Initialize(types.AudioConfig{SampleRate: 48000, Channels: 1}))

	// Nyquist-ish alternating signal should lose most of its energy.
	const n = 512
	buf := make([]float32, n)
	for i := range buf {
		if i%2 == 0 {
			buf[i] = 1
		} else {
			buf[i] = -1
		}
	}

	require.NoError(t, f.Process(buf, n))

	var maxAbs float32
	for _, v := range buf[n/2:] {
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	assert.Less(t, maxAbs, float32(0.5))
}

func TestBiquadRequiresInitializeBeforeProcess(t *testing.T) {
	f := NewLowPass(48000, 200)
	err := f.Process([]float32{1, 2, 3}, 3)
	assert.Error(t, err)
}

func TestBiquadStateIsPerChannel(t *testing.T) {
	f := NewLowPass(48000, 1000)
	require.NoError(t, f.Initialize(types.AudioConfig{SampleRate: 48000, Channels: 2}))

	buf := []float32{1, -1, 0.5, -0.5, 0.25, -0.25}
	require.NoError(t, f.Process(buf, 3))

	assert.NotEqual(t, buf[0], buf[1])
}
