package timestretch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestActiveBypassAtIdentity(t *testing.T) {
	p := New(48000, 2)
	assert.False(t, p.Active(), "tempo=1.0 pitch=0.0 must bypass")

	p.SetTempo(1.5)
	assert.True(t, p.Active())

	p.SetTempo(1.0)
	p.SetPitch(3.0)
	assert.True(t, p.Active())
}

func TestSetTempoClampsToRange(t *testing.T) {
	p := New(48000, 1)

	p.SetTempo(10.0)
	assert.Equal(t, MaxTempo, p.Tempo())

	p.SetTempo(0.01)
	assert.Equal(t, MinTempo, p.Tempo())
}

func TestSetPitchClampsToRange(t *testing.T) {
	p := New(48000, 1)

	p.SetPitch(99)
	assert.Equal(t, MaxPitchSemitones, p.Pitch())

	p.SetPitch(-99)
	assert.Equal(t, MinPitchSemitones, p.Pitch())
}

func TestPutReceiveProducesBoundedOutput(t *testing.T) {
	p := New(48000, 1)
	p.SetTempo(1.0)
	p.SetPitch(0)

	in := make([]float32, 8192)
	for i := range in {
		in[i] = float32(i % 7)
	}
	p.Put(in)

	out := make([]float32, 4096)
	total := 0
	for attempts := 0; attempts < 50 && total < len(out); attempts++ {
		n := p.Receive(out[total:], len(out)-total)
		total += n
		if n == 0 {
			p.Put(in)
		}
	}

	assert.Greater(t, total, 0, "receive must eventually produce frames given enough input")
}

func TestReceiveNeverExceedsRequestedFrameCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ch := rapid.IntRange(1, 2).Draw(t, "channels")
		p := New(48000, ch)
		p.SetTempo(rapid.Float64Range(MinTempo, MaxTempo).Draw(t, "tempo"))
		p.SetPitch(rapid.Float64Range(MinPitchSemitones, MaxPitchSemitones).Draw(t, "pitch"))

		inFrames := rapid.IntRange(0, 8192).Draw(t, "inFrames")
		p.Put(make([]float32, inFrames*ch))

		reqFrames := rapid.IntRange(0, 2048).Draw(t, "reqFrames")
		out := make([]float32, reqFrames*ch)
		n := p.Receive(out, reqFrames)

		assert.LessOrEqual(t, n, reqFrames)
		assert.GreaterOrEqual(t, n, 0)
	})
}

func TestClearResetsInternalState(t *testing.T) {
	p := New(48000, 2)
	p.Put(make([]float32, 4096))
	p.Receive(make([]float32, 512), 256)

	p.Clear()

	assert.Empty(t, p.input)
	assert.Empty(t, p.output)
	assert.Equal(t, float64(0), p.pos)
	for _, v := range p.prevTail {
		assert.Equal(t, float32(0), v)
	}
}

func TestFlushDrainsResidualFrames(t *testing.T) {
	p := New(48000, 1)
	p.SetTempo(1.2)

	p.Put(make([]float32, 1500))
	p.Flush()

	total := 0
	out := make([]float32, 4096)
	for attempts := 0; attempts < 20; attempts++ {
		n := p.Receive(out, len(out))
		total += n
		if n == 0 {
			break
		}
	}

	assert.Greater(t, total, 0, "flush followed by receive must drain the padded residual")
}
