// Package ghostsource implements the engine's C6 component: a silent
// source whose output is always zero and whose position is the
// authoritative timeline of a sync group. Per the spec's Open Question
// resolution (see DESIGN.md), position sync itself runs through the
// Master Clock's read_samples_at_time path; the Ghost Source's observer
// fanout survives only as a convenience broadcast for cascading
// tempo/pitch/loop/state changes to every attached source.
package ghostsource

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ownaudio/goaudio/pkg/types"
)

func floatBits(v float64) uint64     { return math.Float64bits(v) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// MinTempo and MaxTempo bound the ghost's own tempo (spec §4.6): a wider
// range than the time-stretch processor's, since the ghost's tempo is a
// broadcast multiplier on its own frame advancement, not itself processed
// through WSOLA.
const (
	MinTempo = 0.1
	MaxTempo = 4.0
)

// Ghost is the C6 component. A source may observe at most one ghost
// (spec §4.6 "Observer contract").
type Ghost struct {
	totalFrames    atomic.Uint64
	currentFrame   atomic.Uint64
	tempo          atomic.Uint64 // math.Float64bits
	pitch          atomic.Uint64 // math.Float64bits
	loop           atomic.Bool
	state          atomic.Int32

	mu        sync.Mutex
	observers []types.GhostObserver
}

// New creates a ghost with zero duration, state Stopped, tempo 1.0, pitch 0.
func New() *Ghost {
	g := &Ghost{}
	g.state.Store(int32(types.Stopped))
	g.tempo.Store(floatBits(1.0))
	return g
}

// Resize grows/shrinks total_frames to match the longest attached source;
// current_frame is clamped to the new bound.
func (g *Ghost) Resize(totalFrames uint64) {
	g.totalFrames.Store(totalFrames)
	if cur := g.currentFrame.Load(); cur > totalFrames {
		g.currentFrame.Store(totalFrames)
	}
}

// TotalFrames returns the ghost's current resizable duration, in frames.
func (g *Ghost) TotalFrames() uint64 { return g.totalFrames.Load() }

// CurrentFrame returns the ghost's monotonic position, in frames.
func (g *Ghost) CurrentFrame() uint64 { return g.currentFrame.Load() }

// State returns the ghost's lifecycle state.
func (g *Ghost) State() types.SourceState { return types.SourceState(g.state.Load()) }

// Tempo returns the ghost's current tempo multiplier.
func (g *Ghost) Tempo() float64 { return floatFromBits(g.tempo.Load()) }

// Pitch returns the ghost's current pitch shift in semitones.
func (g *Ghost) Pitch() float64 { return floatFromBits(g.pitch.Load()) }

// Loop returns the ghost's current loop setting.
func (g *Ghost) Loop() bool { return g.loop.Load() }

// Subscribe attaches observer to this ghost's broadcast list.
func (g *Ghost) Subscribe(observer types.GhostObserver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, observer)
}

// Unsubscribe detaches observer, if present. A no-op if it was never
// subscribed (spec §4.6 "subscribing a source attaches it, unsubscribing
// detaches").
func (g *Ghost) Unsubscribe(observer types.GhostObserver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, o := range g.observers {
		if o == observer {
			g.observers = append(g.observers[:i], g.observers[i+1:]...)
			return
		}
	}
}

// Play transitions to Playing and broadcasts on_state_changed.
func (g *Ghost) Play() { g.setState(types.Playing) }

// Pause transitions to Paused and broadcasts on_state_changed.
func (g *Ghost) Pause() { g.setState(types.Paused) }

// Stop transitions to Stopped, resets current_frame to 0, and broadcasts
// both on_state_changed and on_position_changed.
func (g *Ghost) Stop() {
	g.setState(types.Stopped)
	g.currentFrame.Store(0)
	g.broadcastPosition(0)
}

// Seek moves current_frame directly (the ghost has no decoder to seek;
// its "seek" is simply repositioning the authoritative counter) and
// broadcasts on_position_changed.
func (g *Ghost) Seek(frame uint64) {
	if total := g.totalFrames.Load(); frame > total {
		frame = total
	}
	g.currentFrame.Store(frame)
	g.broadcastPosition(frame)
}

// SetTempo updates the ghost's tempo, clamped to [MinTempo, MaxTempo], and
// broadcasts on_tempo_changed to every observer.
func (g *Ghost) SetTempo(tempo float64) {
	if tempo < MinTempo {
		tempo = MinTempo
	}
	if tempo > MaxTempo {
		tempo = MaxTempo
	}
	g.tempo.Store(floatBits(tempo))

	g.mu.Lock()
	observers := append([]types.GhostObserver(nil), g.observers...)
	g.mu.Unlock()
	for _, o := range observers {
		o.OnTempoChanged(tempo)
	}
}

// SetPitch updates the ghost's pitch and broadcasts on_pitch_changed.
func (g *Ghost) SetPitch(semitones float64) {
	g.pitch.Store(floatBits(semitones))

	g.mu.Lock()
	observers := append([]types.GhostObserver(nil), g.observers...)
	g.mu.Unlock()
	for _, o := range observers {
		o.OnPitchChanged(semitones)
	}
}

// SetLoop updates the ghost's loop setting and broadcasts on_loop_changed.
func (g *Ghost) SetLoop(loop bool) {
	g.loop.Store(loop)

	g.mu.Lock()
	observers := append([]types.GhostObserver(nil), g.observers...)
	g.mu.Unlock()
	for _, o := range observers {
		o.OnLoopChanged(loop)
	}
}

// ReadSamples zeros out, the ghost's output is always silence — and
// advances current_frame by frameCount*tempo (spec §4.6: "the ghost's own
// advancement is tempo-scaled — observers follow the ghost's frame
// counter, not wall-clock").
func (g *Ghost) ReadSamples(out []float32, frameCount, channels int) int {
	need := frameCount * channels
	if len(out) < need {
		need = len(out)
	}
	clear(out[:need])

	if g.State() == types.Playing {
		advance := uint64(float64(frameCount) * g.Tempo())
		next := g.currentFrame.Add(advance)
		g.broadcastPosition(next)
	}

	return need / maxInt(channels, 1)
}

func (g *Ghost) setState(s types.SourceState) {
	old := types.SourceState(g.state.Swap(int32(s)))
	if old == s {
		return
	}
	g.mu.Lock()
	observers := append([]types.GhostObserver(nil), g.observers...)
	g.mu.Unlock()
	for _, o := range observers {
		o.OnStateChanged(old, s)
	}
}

func (g *Ghost) broadcastPosition(frame uint64) {
	g.mu.Lock()
	observers := append([]types.GhostObserver(nil), g.observers...)
	g.mu.Unlock()
	for _, o := range observers {
		o.OnPositionChanged(frame)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
