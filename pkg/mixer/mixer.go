// Package mixer implements the engine's C7 component: the central
// pull-based aggregator that owns the Master Clock, the active source
// set, the mixing thread, master effects and level metering, and
// optionally drives a WAV recorder — mirroring the teacher's
// pkg/audioplayer.Player consumer loop (read from ring, mix, deliver to
// sink) generalized from one ring to N sources. The mix cycle hands its
// output to a Sink Pump (pkg/sinkpump) rather than calling the sink
// directly: the pump's ring absorbs a slow device callback, and the mixing
// thread waits only while that ring is full, so the sink paces the mix.
package mixer

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/sinkpump"
	"github.com/ownaudio/goaudio/pkg/types"
)

// DefaultMaxSources bounds the attached-source set to keep one mixing
// goroutine's per-cycle work bounded (spec §9 Open Question resolution,
// see DESIGN.md).
const DefaultMaxSources = 16

// offlineRetryTimeout bounds how long Offline mode waits for a source to
// produce a full read before treating the shortfall as an error (spec
// §4.7 "Offline rendering mode variant").
const offlineRetryTimeout = 5 * time.Second

// Source is the subset of FileSource (and any other master-clock-aware
// source) the Mixer depends on. Defined locally to avoid an import cycle
// with pkg/filesource; FileSource satisfies this interface structurally.
type Source interface {
	types.MasterClockSource
	ID() types.SourceID
	State() types.SourceState
	ReadSamples(out []float32, frameCount int) int
	Play() error
}

// Recorder is the collaborator pkg/recorder.WAVRecorder satisfies; kept as an
// interface here so the mixer's hot path never imports an encoding format
// directly.
type Recorder interface {
	WriteSamples(buf []float32) error
	Close() error
}

// Config configures a Mixer at construction time.
type Config struct {
	MaxSources int // 0 means DefaultMaxSources
	EventSink  types.EventSink
}

// Mixer is the C7 component.
type Mixer struct {
	audio types.AudioConfig
	clock *masterclock.Clock
	sink  types.Sink
	pump  *sinkpump.Pump

	maxSources int
	eventSink  types.EventSink

	mu      sync.RWMutex
	sources map[types.SourceID]Source
	cached  []Source
	dirty   atomic.Bool

	masterVolume atomic.Uint32 // math.Float32bits

	effectsMu sync.Mutex
	effects   atomic.Pointer[[]types.Effect]

	recMu    sync.Mutex
	recorder Recorder

	levels []atomic.Uint32 // per-channel peak, math.Float32bits

	running  atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	mixBuf  []float32
	scratch []float32
}

// New constructs a Mixer targeting audio, driving clock, and rendering to
// sink. Spawns no goroutine; Start does.
func New(clock *masterclock.Clock, sink types.Sink, audio types.AudioConfig, cfg Config) *Mixer {
	maxSources := cfg.MaxSources
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}
	evSink := cfg.EventSink
	if evSink == nil {
		evSink = types.NopEventSink
	}

	m := &Mixer{
		audio:      audio,
		clock:      clock,
		sink:       sink,
		pump:       sinkpump.New(sink, audio),
		maxSources: maxSources,
		eventSink:  evSink,
		sources:    make(map[types.SourceID]Source),
		levels:     make([]atomic.Uint32, max(audio.Channels, 1)),
		mixBuf:     make([]float32, audio.FramesPerBuffer*audio.Channels),
		scratch:    make([]float32, audio.FramesPerBuffer*audio.Channels),
	}
	m.masterVolume.Store(math.Float32bits(1.0))
	empty := []types.Effect{}
	m.effects.Store(&empty)
	m.dirty.Store(true)
	return m
}

// AddSource attaches src to the mix, enforcing the hard cap (spec §4.7).
// If the mixer is already running and src is Stopped, src.Play() is
// invoked so it starts contributing on the next cycle.
func (m *Mixer) AddSource(src Source) error {
	m.mu.Lock()
	if len(m.sources) >= m.maxSources {
		m.mu.Unlock()
		return types.ErrSourceCapReached
	}
	m.sources[src.ID()] = src
	m.dirty.Store(true)
	running := m.running.Load()
	m.mu.Unlock()

	if running && src.State() == types.Stopped {
		if err := src.Play(); err != nil {
			m.eventSink.Emit(types.Event{
				Kind: types.EventSourceError,
				SrcError: &types.SourceErrorEvent{
					ID: src.ID(), Message: "play on add failed", Underlying: err,
				},
			})
		}
	}
	return nil
}

// RemoveSource detaches the source with the given ID, if present.
func (m *Mixer) RemoveSource(id types.SourceID) {
	m.mu.Lock()
	delete(m.sources, id)
	m.dirty.Store(true)
	m.mu.Unlock()
}

// SourceCount returns the number of attached sources.
func (m *Mixer) SourceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// MasterVolume returns the current master volume multiplier.
func (m *Mixer) MasterVolume() float32 {
	return math.Float32frombits(m.masterVolume.Load())
}

// SetMasterVolume sets the master volume multiplier.
func (m *Mixer) SetMasterVolume(v float32) {
	m.masterVolume.Store(math.Float32bits(v))
}

// AddMasterEffect appends e to the master effects chain, in registration
// order. Implemented as atomic-swap of an immutable snapshot (spec §5
// "shared-resource policy": "master effect list mutation is atomic-swap of
// an immutable snapshot").
func (m *Mixer) AddMasterEffect(e types.Effect) {
	m.effectsMu.Lock()
	defer m.effectsMu.Unlock()
	cur := *m.effects.Load()
	next := append(append([]types.Effect{}, cur...), e)
	m.effects.Store(&next)
}

// RemoveMasterEffect removes the first effect with the given name, if any.
func (m *Mixer) RemoveMasterEffect(name string) {
	m.effectsMu.Lock()
	defer m.effectsMu.Unlock()
	cur := *m.effects.Load()
	next := make([]types.Effect, 0, len(cur))
	for _, e := range cur {
		if e.Name() != name {
			next = append(next, e)
		}
	}
	m.effects.Store(&next)
}

// ClearMasterEffects empties the master effects chain.
func (m *Mixer) ClearMasterEffects() {
	m.effectsMu.Lock()
	defer m.effectsMu.Unlock()
	empty := []types.Effect{}
	m.effects.Store(&empty)
}

// PeakLevels returns a snapshot of the most recent per-channel peak level.
func (m *Mixer) PeakLevels() []float32 {
	out := make([]float32, len(m.levels))
	for i := range m.levels {
		out[i] = math.Float32frombits(m.levels[i].Load())
	}
	return out
}

// StartRecording begins writing post-master-FX stereo frames to rec.
// Guarded by a dedicated mutex outside the mixing hot path (spec §5).
func (m *Mixer) StartRecording(rec Recorder) {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	m.recorder = rec
}

// StopRecording closes the active recorder, if any.
func (m *Mixer) StopRecording() error {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	if m.recorder == nil {
		return nil
	}
	err := m.recorder.Close()
	m.recorder = nil
	return err
}

// Start begins the mixing thread. Safe to call once; subsequent calls are
// no-ops while already running.
func (m *Mixer) Start() error {
	if m.running.Swap(true) {
		return nil
	}
	if err := m.sink.Start(); err != nil {
		m.running.Store(false)
		return fmt.Errorf("mixer: sink start: %w", err)
	}
	m.pump.Start()
	m.stopChan = make(chan struct{})
	m.wg.Add(1)
	go m.mixLoop()
	return nil
}

// Pause suspends mixing without tearing down the sink or sources.
func (m *Mixer) Pause() {
	m.running.Store(false)
}

// Stop halts the mixing thread, joining it up to 2s (spec §5 suspension
// points), then stops the sink.
func (m *Mixer) Stop() error {
	if !m.running.Swap(false) {
		return nil
	}
	close(m.stopChan)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("mixer: mixing thread did not exit within 2s")
	}

	m.pump.Stop()
	return m.sink.Stop()
}

func (m *Mixer) refreshCacheIfStale() {
	if !m.dirty.Load() {
		return
	}
	m.mu.RLock()
	cached := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		cached = append(cached, s)
	}
	m.mu.RUnlock()
	m.cached = cached
	m.dirty.Store(false)
}

// mixLoop is the mixing thread (spec §4.7 "Mixing loop (one cycle)").
func (m *Mixer) mixLoop() {
	defer m.wg.Done()

	fpb := m.audio.FramesPerBuffer
	ch := m.audio.Channels

	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		if !m.running.Load() {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		m.refreshCacheIfStale()
		clear(m.mixBuf)

		timestamp := m.clock.CurrentTimestamp()
		contributed := false

		for _, src := range m.cached {
			if src.State() != types.Playing {
				continue
			}

			var n int
			if src.IsAttachedToClock() {
				ok, result := m.readAttached(src, timestamp, fpb)
				n = result.FramesRead
				if !ok {
					// The source itself already emitted EventTrackDropout
					// from ReadSamplesAtTime for this same underrun; it
					// knows the precise missing-frame count and reason,
					// the mixer only knows the fallout. Log, don't re-emit.
					slog.Debug("mixer: short read from attached source",
						"source", src.ID().String(), "timestamp", timestamp, "missing_frames", fpb-n)
				}
			} else {
				n = src.ReadSamples(m.scratch, fpb)
			}

			if n > 0 {
				addInto(m.mixBuf, m.scratch, n*ch)
				contributed = true
			}
		}

		if contributed {
			applyGain(m.mixBuf, m.MasterVolume())
			m.applyMasterEffects(fpb)
			m.updateLevels(ch)
			m.writeToRecorder()
		}

		for pushed := 0; pushed < len(m.mixBuf); {
			w := m.pump.Push(m.mixBuf[pushed:])
			pushed += w
			if w == 0 {
				select {
				case <-m.stopChan:
					return
				default:
				}
				time.Sleep(time.Millisecond)
			}
		}
		m.clock.Advance(uint64(fpb))
	}
}

// readAttached reads from an attached source, retrying with bounded 1ms
// sleeps in Offline mode (spec §4.7 "Offline rendering mode variant") or
// accepting a single short read in Realtime mode.
func (m *Mixer) readAttached(src Source, timestamp float64, fpb int) (bool, types.ReadResult) {
	ok, result := src.ReadSamplesAtTime(timestamp, m.scratch, fpb)
	if m.clock.Mode() != masterclock.Offline || ok {
		return ok, result
	}

	deadline := time.Now().Add(offlineRetryTimeout)
	for !ok && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		ok, result = src.ReadSamplesAtTime(timestamp, m.scratch, fpb)
	}
	return ok, result
}

func (m *Mixer) applyMasterEffects(frameCount int) {
	effects := *m.effects.Load()
	for _, e := range effects {
		if !e.Enabled() {
			continue
		}
		if err := e.Process(m.mixBuf, frameCount); err != nil {
			slog.Warn("mixer: master effect failed, skipping for this cycle", "effect", e.Name(), "error", err)
		}
	}
}

func (m *Mixer) updateLevels(channels int) {
	if channels == 0 {
		return
	}
	peaks := make([]float32, channels)
	for i, v := range m.mixBuf {
		c := i % channels
		av := v
		if av < 0 {
			av = -av
		}
		if av > peaks[c] {
			peaks[c] = av
		}
	}
	for c, p := range peaks {
		if c < len(m.levels) {
			m.levels[c].Store(math.Float32bits(p))
		}
	}
}

func (m *Mixer) writeToRecorder() {
	m.recMu.Lock()
	rec := m.recorder
	m.recMu.Unlock()
	if rec == nil {
		return
	}
	if err := rec.WriteSamples(m.mixBuf); err != nil {
		slog.Warn("mixer: recorder write failed", "error", err)
	}
}

// addInto performs the additive mix: dst[i] += src[i] for i in [0, n),
// unrolled by 4 as a scalar stand-in for SIMD (spec §4.7 "SIMD policy":
// vectorized where the platform supports it, scalar tail for the
// remainder — no pack dependency exposes Go SIMD primitives, see
// DESIGN.md, so the unroll is the closest portable analogue).
func addInto(dst, src []float32, n int) {
	i := 0
	for ; i+4 <= n; i += 4 {
		dst[i] += src[i]
		dst[i+1] += src[i+1]
		dst[i+2] += src[i+2]
		dst[i+3] += src[i+3]
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

// applyGain scales buf by gain in place, unrolled by 4.
func applyGain(buf []float32, gain float32) {
	if gain == 1.0 {
		return
	}
	n := len(buf)
	i := 0
	for ; i+4 <= n; i += 4 {
		buf[i] *= gain
		buf[i+1] *= gain
		buf[i+2] *= gain
		buf[i+3] *= gain
	}
	for ; i < n; i++ {
		buf[i] *= gain
	}
}
