// Package filesource implements the engine's C5 component, the central
// background-decoding source: a decoder thread feeding a lock-free ring
// buffer through an optional time-stretch stage, continuous drift
// correction against the Master Clock timestamp, and the consumer-side
// read paths the Mixer pulls from.
package filesource

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ownaudio/goaudio/pkg/ghostsource"
	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/ringbuffer"
	"github.com/ownaudio/goaudio/pkg/timestretch"
	"github.com/ownaudio/goaudio/pkg/types"
)

func float32bits(v float32) uint32      { return math.Float32bits(v) }
func float32frombits(b uint32) float32  { return math.Float32frombits(b) }
func float64bits(v float64) uint64      { return math.Float64bits(v) }
func float64frombits(b uint64) float64  { return math.Float64frombits(b) }

// DefaultSyncTolerance is the default drift tolerance before a resync is
// triggered: 512 frames, ~10 ms at 48 kHz (spec §4 DESIGN NOTES — much
// narrower than an original 100 ms figure, which had been widened to
// account for scheduling slop; the narrower value is preferred absent a
// real-time audit saying otherwise).
const DefaultSyncTolerance = 512

// gracePeriodFramesAt returns the grace period, in frames, after a
// tempo/pitch change: sample_rate/2 frames (~500 ms), because C3 needs to
// refill before drift can be measured meaningfully (spec §4.5/§9).
func gracePeriodFramesAt(sampleRate int) uint64 {
	return uint64(sampleRate) / 2
}

// Config configures a FileSource at construction time.
type Config struct {
	Audio         types.AudioConfig
	FileName      string // surfaced only via GetPlaybackStatus; purely informational
	Loop          bool
	Volume        float32
	SyncTolerance uint64 // frames; 0 means DefaultSyncTolerance
	EventSink     types.EventSink
}

// FileSource is the C5 component. Construction allocates every buffer it
// will ever need (ring buffer, decode scratch, C3 input/accumulation
// buffers) and spawns no goroutine; the decoder thread is started lazily
// by the first Play call, mirroring the teacher's FilePlayer/PlayFile
// split between "open" and "play".
type FileSource struct {
	id       types.SourceID
	decoder  types.FrameDecoder
	audio    types.AudioConfig
	dur      time.Duration
	fileName string

	startTime time.Time

	ring   *ringbuffer.RingBuffer
	stretch *timestretch.Processor
	accum  []float32 // 8x frames-per-buffer accumulation buffer
	scratch []float32 // decode scratch, 4x frames-per-buffer

	state atomic.Int32 // types.SourceState

	// currentPosition is the consumer-side read cursor, in frames, advanced
	// by read_samples/read_samples_at_time.
	currentPosition atomic.Uint64
	// localTime is the source's own tracked local playback time, in frames,
	// independent of the decoder's byte position ("the source tracks its
	// own track_local_time independently of the decoder's byte position,
	// because tempo may have changed the relationship").
	localTime atomic.Uint64
	// filePosition is the decoder thread's own cursor into the underlying
	// file, in frames of source material actually decoded. It diverges from
	// localTime whenever tempo != 1, since C3 then changes the ratio
	// between frames consumed from the file and frames of local playback
	// time produced — that divergence is exactly what drift correction in
	// ReadSamplesAtTime measures.
	filePosition atomic.Uint64

	loop   atomic.Bool
	volume atomic.Uint32 // math.Float32bits

	paramMu sync.Mutex // guards tempo/pitch C3 configuration changes
	syncTolerance  uint64
	ignoreSyncUntil atomic.Uint64 // grace-period deadline, in localTime frames

	seekRequested atomic.Bool
	seekTarget    atomic.Uint64 // bits of float64 seconds, via math.Float64bits

	clock *masterclock.Clock
	ghost *ghostsource.Ghost

	eventSink types.EventSink

	eofReached atomic.Bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
}

// New constructs a FileSource around decoder, targeting cfg.Audio. The
// decoder's native format may differ from cfg.Audio; callers are expected
// to have already wrapped a mismatched decoder in pkg/decoders/resample.
func New(decoder types.FrameDecoder, cfg Config) *FileSource {
	_, _, dur, _ := decoder.StreamInfo()

	fpb := cfg.Audio.FramesPerBuffer
	if fpb <= 0 {
		fpb = 512
	}
	ch := cfg.Audio.Channels
	if ch <= 0 {
		ch = 2
	}

	tol := cfg.SyncTolerance
	if tol == 0 {
		tol = DefaultSyncTolerance
	}
	sink := cfg.EventSink
	if sink == nil {
		sink = types.NopEventSink
	}

	fs := &FileSource{
		id:            types.NewSourceID(),
		decoder:       decoder,
		audio:         cfg.Audio,
		dur:           dur,
		fileName:      cfg.FileName,
		ring:          ringbuffer.New(uint64(fpb * ch * 4)),
		stretch:       timestretch.New(cfg.Audio.SampleRate, ch),
		accum:         make([]float32, 0, fpb*ch*8),
		scratch:       make([]float32, fpb*ch*4),
		syncTolerance: tol,
		eventSink:     sink,
		stopChan:      make(chan struct{}),
	}
	fs.loop.Store(cfg.Loop)
	vol := cfg.Volume
	if vol == 0 {
		vol = 1.0
	}
	fs.setVolume(vol)
	fs.state.Store(int32(types.Stopped))

	return fs
}

// ID returns this source's stable identity.
func (fs *FileSource) ID() types.SourceID { return fs.id }

// State returns the current lifecycle state.
func (fs *FileSource) State() types.SourceState {
	return types.SourceState(fs.state.Load())
}

func (fs *FileSource) setState(s types.SourceState) {
	old := types.SourceState(fs.state.Swap(int32(s)))
	if old != s {
		fs.eventSink.Emit(types.Event{
			Kind:     types.EventStateChanged,
			StateChg: &types.StateChangedEvent{ID: fs.id, Old: old, New: s},
		})
	}
}

// Duration returns the decoder-reported stream duration.
func (fs *FileSource) Duration() time.Duration { return fs.dur }

// Volume returns the current per-source linear volume.
func (fs *FileSource) Volume() float32 {
	bits := fs.volume.Load()
	return float32frombits(bits)
}

// SetVolume sets the per-source linear volume multiplier.
func (fs *FileSource) SetVolume(v float32) { fs.setVolume(v) }

func (fs *FileSource) setVolume(v float32) {
	fs.volume.Store(float32bits(v))
}

// SetLoop toggles whether EndOfStream seeks back to 0 instead of terminating.
func (fs *FileSource) SetLoop(loop bool) { fs.loop.Store(loop) }

// Loop reports the current loop setting.
func (fs *FileSource) Loop() bool { return fs.loop.Load() }

// SetTempo updates the time-stretch tempo and arms a grace period (spec
// §4.5: "clamp, update C3, set grace-period deadline = current position +
// sample_rate/2 frames").
func (fs *FileSource) SetTempo(tempo float64) {
	fs.paramMu.Lock()
	fs.stretch.SetTempo(tempo)
	fs.armGracePeriod()
	fs.paramMu.Unlock()
}

// SetPitch updates the time-stretch pitch shift and arms a grace period.
func (fs *FileSource) SetPitch(semitones float64) {
	fs.paramMu.Lock()
	fs.stretch.SetPitch(semitones)
	fs.armGracePeriod()
	fs.paramMu.Unlock()
}

func (fs *FileSource) armGracePeriod() {
	deadline := fs.localTime.Load() + gracePeriodFramesAt(fs.audio.SampleRate)
	fs.ignoreSyncUntil.Store(deadline)
}

// Tempo returns the current time-stretch tempo factor.
func (fs *FileSource) Tempo() float64 {
	fs.paramMu.Lock()
	defer fs.paramMu.Unlock()
	return fs.stretch.Tempo()
}

// Pitch returns the current time-stretch pitch shift, in semitones.
func (fs *FileSource) Pitch() float64 {
	fs.paramMu.Lock()
	defer fs.paramMu.Unlock()
	return fs.stretch.Pitch()
}

// Play transitions to Playing, lazily starting the decoder thread on first
// call, and waits (bounded) for the ring buffer to pre-fill to reduce the
// odds of an immediate underrun (spec §4.5: "waits until ring buffer ≥ 25%
// full or 50 ms elapsed before returning").
func (fs *FileSource) Play() error {
	fs.mu.Lock()
	if fs.stopped {
		fs.mu.Unlock()
		return fmt.Errorf("filesource: play called after dispose")
	}
	if !fs.started {
		fs.started = true
		fs.startTime = time.Now()
		fs.wg.Add(1)
		go fs.decodeLoop()
	}
	fs.mu.Unlock()

	fs.setState(types.Playing)

	deadline := time.Now().Add(50 * time.Millisecond)
	threshold := fs.ring.Capacity() / 4
	for time.Now().Before(deadline) {
		if fs.ring.AvailableRead() >= threshold {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Pause transitions to Paused; the decoder thread parks until Play resumes it.
func (fs *FileSource) Pause() {
	fs.setState(types.Paused)
}

// Stop transitions to Stopped, clears the ring buffer and seeks the
// decoder to the start (spec §4.5).
func (fs *FileSource) Stop() {
	fs.setState(types.Stopped)
	fs.ring.Clear()
	fs.stretch.Clear()
	fs.currentPosition.Store(0)
	fs.localTime.Store(0)
	fs.filePosition.Store(0)
	_ = fs.decoder.TrySeek(0)
}

// Seek requests a seek to position seconds. A negative position is clamped
// to 0; a position past the duration returns ErrSeekOutOfRange. If the
// decoder thread has not started yet, the seek runs synchronously;
// otherwise it posts a request consumed by the decoder thread at its next
// loop iteration.
func (fs *FileSource) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if max := fs.dur.Seconds(); seconds > max {
		return types.ErrSeekOutOfRange
	}

	fs.mu.Lock()
	started := fs.started
	fs.mu.Unlock()

	if !started {
		if err := fs.decoder.TrySeek(time.Duration(seconds * float64(time.Second))); err != nil {
			return err
		}
		fs.ring.Clear()
		fs.stretch.Clear()
		frames := uint64(seconds * float64(fs.audio.SampleRate))
		fs.currentPosition.Store(frames)
		fs.localTime.Store(frames)
		fs.filePosition.Store(frames)
		return nil
	}

	fs.seekTarget.Store(float64bits(seconds))
	fs.seekRequested.Store(true)
	return nil
}

// AttachToClock wires the source as an IMasterClockSource against clock,
// and subscribes it as a ghost observer if ghost is non-nil (spec §4.5).
func (fs *FileSource) AttachToClock(clock *masterclock.Clock, ghost *ghostsource.Ghost) error {
	fs.clock = clock
	if ghost != nil {
		if fs.ghost != nil {
			return types.ErrAlreadyAttachedToGhost
		}
		fs.ghost = ghost
		ghost.Subscribe(fs)
	}
	return nil
}

// DetachFromClock removes the clock/ghost attachment.
func (fs *FileSource) DetachFromClock() {
	if fs.ghost != nil {
		fs.ghost.Unsubscribe(fs)
		fs.ghost = nil
	}
	fs.clock = nil
}

// IsAttachedToClock implements types.MasterClockSource.
func (fs *FileSource) IsAttachedToClock() bool { return fs.clock != nil }

// ReadSamples is the legacy consumer path (spec §4.5): fills silence when
// not Playing, otherwise reads from the ring buffer, advances
// current_position, applies volume, zero-fills and emits a buffer_underrun
// event on short read.
func (fs *FileSource) ReadSamples(out []float32, frameCount int) int {
	ch := fs.audio.Channels
	need := frameCount * ch
	if len(out) < need {
		need = len(out)
	}

	if fs.State() != types.Playing {
		clear(out[:need])
		return 0
	}

	n := fs.ring.Read(out[:need])
	fs.currentPosition.Add(uint64(n / maxInt(ch, 1)))
	fs.localTime.Add(uint64(n / maxInt(ch, 1)))

	if n < need {
		fs.eventSink.Emit(types.Event{
			Kind: types.EventBufferUnderrun,
			Underrun: &types.BufferUnderrunEvent{
				MissingFrames: (need - n) / maxInt(ch, 1),
				FramePosition: fs.currentPosition.Load(),
			},
		})
	}

	applyVolume(out[:need], fs.Volume())

	fs.maybeTransitionAtEndOfStream(n, need)

	return n / maxInt(ch, 1)
}

// ReadSamplesAtTime implements types.MasterClockSource: the Master-Clock
// consumer path (spec §4.5). It reads whatever is currently buffered,
// zero-fills any shortfall, and — once the grace period has elapsed and
// drift exceeds tolerance — posts a relative seek request so the decoder
// thread converges the stream back onto the master timeline.
func (fs *FileSource) ReadSamplesAtTime(t float64, out []float32, frameCount int) (bool, types.ReadResult) {
	ch := fs.audio.Channels
	need := frameCount * ch
	if len(out) < need {
		need = len(out)
	}

	if fs.State() != types.Playing {
		clear(out[:need])
		return true, types.ReadResult{FramesRead: 0}
	}

	trackLocalTime := float64(fs.localTime.Load()) / float64(fs.audio.SampleRate)
	drift := t - trackLocalTime

	if fs.localTime.Load() >= fs.ignoreSyncUntil.Load() {
		fs.paramMu.Lock()
		tempo := fs.stretch.Tempo()
		fs.paramMu.Unlock()

		if absF64(drift) > float64(fs.syncTolerance)/float64(fs.audio.SampleRate) {
			currentFileSeconds := float64(fs.filePosition.Load()) / float64(fs.audio.SampleRate)
			fs.postRelativeSeek(currentFileSeconds + drift*tempo)
		}
	}

	n := fs.ring.Read(out[:need])
	fs.currentPosition.Add(uint64(n / maxInt(ch, 1)))
	fs.localTime.Add(uint64(n / maxInt(ch, 1)))
	applyVolume(out[:need], fs.Volume())

	ok := n == need
	if !ok {
		fs.eventSink.Emit(types.Event{
			Kind: types.EventTrackDropout,
			Dropout: &types.TrackDropoutEvent{
				ID:            fs.id,
				Kind:          "filesource",
				Timestamp:     t,
				MissingFrames: (need - n) / maxInt(ch, 1),
				Reason:        "ring buffer underrun during master-clock read",
			},
		})
	}

	fs.maybeTransitionAtEndOfStream(n, need)

	return ok, types.ReadResult{FramesRead: n / maxInt(ch, 1)}
}

// postRelativeSeek posts a request, consumed by the decoder thread, to seek
// the underlying file to targetSeconds. The caller is responsible for
// computing targetSeconds entirely in the seconds domain — this function
// does no further unit conversion.
func (fs *FileSource) postRelativeSeek(targetSeconds float64) {
	if targetSeconds < 0 {
		targetSeconds = 0
	}
	fs.seekTarget.Store(float64bits(targetSeconds))
	fs.seekRequested.Store(true)
}

func (fs *FileSource) maybeTransitionAtEndOfStream(read, need int) {
	if read < need && fs.eofReached.Load() && fs.ring.AvailableRead() == 0 {
		if fs.loop.Load() {
			fs.Stop()
			fs.setState(types.Playing)
		} else {
			fs.setState(types.EndOfStream)
		}
	}
}

// Dispose stops the decoder thread (joining up to 2s, per spec §4.5
// suspension points) and releases the decoder. Safe to call once.
func (fs *FileSource) Dispose() error {
	fs.mu.Lock()
	if fs.stopped {
		fs.mu.Unlock()
		return nil
	}
	fs.stopped = true
	started := fs.started
	fs.mu.Unlock()

	if started {
		close(fs.stopChan)
		done := make(chan struct{})
		go func() {
			fs.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			slog.Warn("filesource: decoder thread did not exit within 2s", "source", fs.id.String())
		}
	}

	return fs.decoder.Dispose()
}

// decodeLoop is the decoder thread (spec §4.5 "Decoder thread algorithm"):
// runs until stopChan closes, parking while paused, servicing seek
// requests, and feeding the ring buffer either directly or through the
// time-stretch processor depending on whether C3 is active.
func (fs *FileSource) decodeLoop() {
	defer fs.wg.Done()

	ch := fs.audio.Channels
	fpb := fs.audio.FramesPerBuffer
	if fpb <= 0 {
		fpb = 512
	}

	for {
		select {
		case <-fs.stopChan:
			return
		default:
		}

		if fs.State() != types.Playing {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if fs.seekRequested.Load() {
			seconds := float64frombits(fs.seekTarget.Load())
			fs.seekRequested.Store(false)
			if err := fs.decoder.TrySeek(time.Duration(seconds * float64(time.Second))); err != nil {
				fs.eventSink.Emit(types.Event{
					Kind: types.EventSourceError,
					SrcError: &types.SourceErrorEvent{
						ID: fs.id, Message: "seek failed", Underlying: err,
					},
				})
			} else {
				frames := uint64(seconds * float64(fs.audio.SampleRate))
				fs.currentPosition.Store(frames)
				fs.localTime.Store(frames)
				fs.filePosition.Store(frames)
			}
			fs.ring.Clear()
			fs.stretch.Clear()
			fs.accum = fs.accum[:0]
			continue
		}

		if fs.ring.AvailableRead() >= (fs.ring.Capacity()*3)/4 {
			time.Sleep(time.Millisecond)
			continue
		}

		n, eof, err := fs.decoder.DecodeNextFrame(fs.scratch)
		switch {
		case err != nil:
			fs.eventSink.Emit(types.Event{
				Kind: types.EventSourceError,
				SrcError: &types.SourceErrorEvent{
					ID: fs.id, Message: "decode failed", Underlying: err,
				},
			})
			fs.eofReached.Store(true)
			fs.setState(types.Error)
			return

		case eof:
			fs.eofReached.Store(true)
			fs.stretch.Flush()
			fs.drainStretchResiduals(ch, fpb)
			if fs.loop.Load() {
				if err := fs.decoder.TrySeek(0); err == nil {
					fs.stretch.Clear()
					fs.eofReached.Store(false)
					fs.filePosition.Store(0)
					continue
				}
			}
			for fs.ring.AvailableRead() > 0 {
				time.Sleep(time.Millisecond)
				select {
				case <-fs.stopChan:
					return
				default:
				}
			}
			return

		default:
			fs.filePosition.Add(uint64(n))
			samples := fs.scratch[:n*ch]
			if fs.stretch.Active() {
				fs.paramMu.Lock()
				fs.stretch.Put(samples)
				fs.paramMu.Unlock()
				fs.pullStretchIntoAccumulator(ch, fpb)
				fs.flushAccumulatorChunks(ch, fpb)
			} else {
				for written := 0; written < len(samples); {
					w := fs.ring.Write(samples[written:])
					written += w
					if w == 0 {
						time.Sleep(time.Millisecond)
						select {
						case <-fs.stopChan:
							return
						default:
						}
					}
				}
			}
		}
	}
}

// pullStretchIntoAccumulator pulls up to one batch of processed samples
// from C3 and appends them to the 8x accumulation buffer.
func (fs *FileSource) pullStretchIntoAccumulator(ch, fpb int) {
	batch := make([]float32, fpb*ch)
	n := fs.stretch.Receive(batch, fpb)
	fs.accum = append(fs.accum, batch[:n*ch]...)
}

// flushAccumulatorChunks writes exactly frames_per_buffer-sized chunks from
// the accumulation buffer to the ring buffer, leaving any ragged remainder
// for next time — the fixed-chunk discipline spec §4.5 requires for stable
// downstream timing regardless of C3's ragged output.
func (fs *FileSource) flushAccumulatorChunks(ch, fpb int) {
	chunk := fpb * ch
	for len(fs.accum) >= chunk {
		for written := 0; written < chunk; {
			w := fs.ring.Write(fs.accum[written:chunk])
			written += w
			if w == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		fs.accum = fs.accum[chunk:]
	}
}

// drainStretchResiduals pulls every remaining processed sample out of C3
// after Flush and pushes it to the ring buffer, ignoring the fixed-chunk
// discipline since there is no more input coming.
func (fs *FileSource) drainStretchResiduals(ch, fpb int) {
	batch := make([]float32, fpb*ch)
	for {
		n := fs.stretch.Receive(batch, fpb)
		if n == 0 {
			break
		}
		fs.accum = append(fs.accum, batch[:n*ch]...)
	}
	for len(fs.accum) > 0 {
		w := fs.ring.Write(fs.accum)
		if w == 0 {
			break
		}
		fs.accum = fs.accum[w:]
	}
}

// GetPlaybackStatus implements types.PlaybackMonitor, mirroring the
// teacher's PlaybackStatus convention so cmd/goaudioctl can poll any
// attached source the same way the teacher's playerMonitorAdapter did.
func (fs *FileSource) GetPlaybackStatus() types.PlaybackStatus {
	fs.mu.Lock()
	started := fs.started
	startTime := fs.startTime
	fs.mu.Unlock()

	var elapsed time.Duration
	if started {
		elapsed = time.Since(startTime)
	}

	ch := maxInt(fs.audio.Channels, 1)
	return types.PlaybackStatus{
		FileName:        fs.fileName,
		SampleRate:      fs.audio.SampleRate,
		Channels:        fs.audio.Channels,
		FramesPerBuffer: fs.audio.FramesPerBuffer,
		PlayedSamples:   fs.currentPosition.Load(),
		BufferedSamples: uint64(fs.ring.AvailableRead() / ch),
		ElapsedTime:     elapsed,
	}
}

// OnStateChanged, OnPositionChanged, OnTempoChanged, OnPitchChanged and
// OnLoopChanged implement types.GhostObserver: the ghost source's
// notifications are a convenience cascade for tempo/pitch/loop (spec's
// Open Question resolution, see DESIGN.md) — position sync itself runs
// through ReadSamplesAtTime, not through OnPositionChanged.
func (fs *FileSource) OnStateChanged(old, new types.SourceState) {}

func (fs *FileSource) OnPositionChanged(currentFrame uint64) {}

func (fs *FileSource) OnTempoChanged(tempo float64) {
	fs.SetTempo(tempo)
}

func (fs *FileSource) OnPitchChanged(pitchSemitones float64) {
	fs.SetPitch(pitchSemitones)
}

func (fs *FileSource) OnLoopChanged(loop bool) {
	fs.SetLoop(loop)
}

func applyVolume(buf []float32, vol float32) {
	if vol == 1.0 {
		return
	}
	for i := range buf {
		buf[i] *= vol
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
