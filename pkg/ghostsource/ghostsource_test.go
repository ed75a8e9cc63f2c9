package ghostsource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ownaudio/goaudio/pkg/types"
)

type recordingObserver struct {
	states    []types.SourceState
	positions []uint64
	tempos    []float64
	pitches   []float64
	loops     []bool
}

func (r *recordingObserver) OnStateChanged(old, new types.SourceState) {
	r.states = append(r.states, new)
}
func (r *recordingObserver) OnPositionChanged(f uint64) { r.positions = append(r.positions, f) }
func (r *recordingObserver) OnTempoChanged(t float64)   { r.tempos = append(r.tempos, t) }
func (r *recordingObserver) OnPitchChanged(p float64)   { r.pitches = append(r.pitches, p) }
func (r *recordingObserver) OnLoopChanged(l bool)       { r.loops = append(r.loops, l) }

func TestReadSamplesAlwaysZero(t *testing.T) {
	g := New()
	g.Play()

	out := make([]float32, 8)
	for i := range out {
		out[i] = 1
	}
	g.ReadSamples(out, 4, 2)
	assert.Equal(t, make([]float32, 8), out)
}

func TestReadSamplesAdvancesByTempo(t *testing.T) {
	g := New()
	g.Play()
	g.SetTempo(2.0)

	out := make([]float32, 16)
	g.ReadSamples(out, 4, 2)

	assert.EqualValues(t, 8, g.CurrentFrame())
}

func TestStopResetsPosition(t *testing.T) {
	g := New()
	g.Play()
	g.ReadSamples(make([]float32, 8), 4, 2)
	assert.NotZero(t, g.CurrentFrame())

	g.Stop()
	assert.EqualValues(t, 0, g.CurrentFrame())
	assert.Equal(t, types.Stopped, g.State())
}

func TestSubscribeReceivesBroadcasts(t *testing.T) {
	g := New()
	g.Resize(1000)
	obs := &recordingObserver{}
	g.Subscribe(obs)

	g.Play()
	g.SetTempo(1.5)
	g.SetPitch(3)
	g.SetLoop(true)
	g.Seek(100)

	assert.Contains(t, obs.states, types.Playing)
	assert.Contains(t, obs.tempos, 1.5)
	assert.Contains(t, obs.pitches, float64(3))
	assert.Contains(t, obs.loops, true)
	assert.Contains(t, obs.positions, uint64(100))
}

func TestUnsubscribeStopsBroadcasts(t *testing.T) {
	g := New()
	obs := &recordingObserver{}
	g.Subscribe(obs)
	g.Unsubscribe(obs)

	g.SetTempo(1.7)
	assert.Empty(t, obs.tempos)
}

func TestTempoClampedToRange(t *testing.T) {
	g := New()
	g.SetTempo(100)
	assert.Equal(t, MaxTempo, g.Tempo())

	g.SetTempo(-5)
	assert.Equal(t, MinTempo, g.Tempo())
}

func TestResizeClampsCurrentFrame(t *testing.T) {
	g := New()
	g.Resize(1000)
	g.Seek(900)
	g.Resize(500)
	assert.EqualValues(t, 500, g.CurrentFrame())
}
