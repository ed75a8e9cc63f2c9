// Package types holds the value types and external-collaborator interfaces
// shared by every component of the engine: the audio configuration, the
// source state machine, identifiers, event payloads, and the trait-like
// interfaces a frame decoder, an audio sink, a ghost observer and a
// master-clock-aware source must implement.
package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common ringbuffer/pool errors shared across C1/C2 and their callers.
// These enable consistent error handling and comparison using errors.Is().
var (
	// ErrInsufficientSpace indicates a ring buffer has no room for a write.
	ErrInsufficientSpace = errors.New("insufficient space in ringbuffer")
	// ErrInsufficientData indicates a ring buffer has nothing to read.
	ErrInsufficientData = errors.New("insufficient data in ringbuffer")
	// ErrSeekOutOfRange indicates a seek target fell outside [0, duration].
	ErrSeekOutOfRange = errors.New("seek position out of range")
	// ErrSourceCapReached indicates the mixer's attached-source cap is full.
	ErrSourceCapReached = errors.New("attached source cap reached")
	// ErrAlreadyAttachedToGhost indicates a source tried to observe a second ghost.
	ErrAlreadyAttachedToGhost = errors.New("source already attached to a ghost")
	// ErrNotPlaying reports that a source is not in the Playing state.
	ErrNotPlaying = errors.New("source is not playing")
)

// AudioConfig is the engine-wide audio configuration: sample rate, channel
// count and frames-per-buffer. It is immutable after engine construction
// (spec §3 "Audio Configuration").
type AudioConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// BytesPerFrame returns the byte footprint of one interleaved frame at
// 32-bit float sample width.
func (c AudioConfig) BytesPerFrame() int {
	return c.Channels * 4
}

// Frame is the Audio Frame data model (spec §3): a contiguous interleaved
// float32 payload plus a presentation timestamp, in seconds since the
// owning source started. Frames are created by a decoder, consumed by the
// ring buffer, and returned to the frame pool.
type Frame struct {
	PTS    float64
	Config AudioConfig
	Audio  []float32
}

// SourceState is the sum type driving the Mixer's pull decisions (spec §3).
type SourceState int

const (
	Stopped SourceState = iota
	Playing
	Paused
	Buffering
	EndOfStream
	Error
)

func (s SourceState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Buffering:
		return "buffering"
	case EndOfStream:
		return "end_of_stream"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// SourceID is a universally-unique 128-bit identifier assigned at source
// creation, stable for the source's lifetime (spec §3 "Source Identity").
type SourceID uuid.UUID

// NewSourceID allocates a fresh random source identity.
func NewSourceID() SourceID {
	return SourceID(uuid.New())
}

func (id SourceID) String() string {
	return uuid.UUID(id).String()
}

// FrameDecoder is the external frame-decoder collaborator (spec §6). The
// core never parses a bitstream itself; it only consumes this interface.
type FrameDecoder interface {
	// StreamInfo reports the decoder's native format and duration.
	StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int)
	// DecodeNextFrame decodes one frame's worth of interleaved samples into
	// dst (sized for the caller's batch) and reports how many frames were
	// produced, whether the stream ended, and whether decoding failed.
	DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error)
	// TrySeek seeks to the given position, returning an error if the
	// decoder refuses (e.g. out of range, unsupported on this stream).
	TrySeek(position time.Duration) error
	// Dispose releases decoder resources. Safe to call once, at teardown.
	Dispose() error
}

// Sink is the external audio-sink collaborator (spec §6): a platform output
// device presenting blocking and non-blocking send, plus capture.
type Sink interface {
	Initialize(config AudioConfig) error
	Start() error
	Stop() error
	// SendFrames blocks up to one device period if the device buffer is full.
	SendFrames(samples []float32)
	// TrySendFrames is the non-blocking variant, returning the number of
	// samples accepted.
	TrySendFrames(samples []float32) (written int, err error)
	// ReceiveFrames is the capture path; returns frames actually captured.
	ReceiveFrames(dst []float32) (framesRead int)
	EnumerateOutputs() ([]DeviceInfo, error)
	EnumerateInputs() ([]DeviceInfo, error)
	DefaultOutput() (DeviceInfo, error)
	DefaultInput() (DeviceInfo, error)
	FramesPerBuffer() int
	Dispose() error
}

// DeviceInfo describes one enumerated platform audio device.
type DeviceInfo struct {
	Index      int
	Name       string
	MaxInputs  int
	MaxOutputs int
	IsDefault  bool
}

// ReadResult is returned by MasterClockSource.ReadSamplesAtTime.
type ReadResult struct {
	FramesRead int
	Err        error
}

// MasterClockSource is the Source -> Mixer collaborator interface (spec §6):
// a source that can render itself against an arbitrary master timestamp.
type MasterClockSource interface {
	IsAttachedToClock() bool
	ReadSamplesAtTime(t float64, out []float32, frameCount int) (ok bool, result ReadResult)
}

// GhostObserver is the Ghost -> Source collaborator interface (spec §4.6).
// Every callback must be idempotent and must not perform long work.
type GhostObserver interface {
	OnStateChanged(old, new SourceState)
	OnPositionChanged(currentFrame uint64)
	OnTempoChanged(tempo float64)
	OnPitchChanged(pitchSemitones float64)
	OnLoopChanged(loop bool)
}

// Effect is a per-source or master DSP unit in the effects chain (spec
// §4.10). Process must run in-place on buf and must not allocate in its
// steady state.
type Effect interface {
	Initialize(config AudioConfig) error
	Process(buf []float32, frameCount int) error
	Enabled() bool
	SetEnabled(bool)
	Name() string
	Dispose() error
}

// PlaybackStatus holds unified playback metrics, mirroring the teacher's
// PlaybackMonitor convention so CLI/monitoring code can poll any source.
type PlaybackStatus struct {
	FileName        string
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	PlayedSamples   uint64
	BufferedSamples uint64
	ElapsedTime     time.Duration
}

// PlaybackMonitor is implemented by anything that can report PlaybackStatus.
type PlaybackMonitor interface {
	GetPlaybackStatus() PlaybackStatus
}

// EventKind tags which field of Event is populated.
type EventKind int

const (
	EventBufferUnderrun EventKind = iota
	EventSourceError
	EventTrackDropout
	EventStateChanged
)

// Event is the tagged union of engine event payloads (spec §6 "Event
// stream"). Exactly one of the typed fields is populated per event, keyed
// by Kind.
type Event struct {
	Kind     EventKind
	Underrun *BufferUnderrunEvent
	SrcError *SourceErrorEvent
	Dropout  *TrackDropoutEvent
	StateChg *StateChangedEvent
}

type BufferUnderrunEvent struct {
	MissingFrames int
	FramePosition uint64
}

type SourceErrorEvent struct {
	ID         SourceID
	Message    string
	Underlying error
}

type TrackDropoutEvent struct {
	ID            SourceID
	Kind          string
	Timestamp     float64
	MissingFrames int
	Reason        string
}

type StateChangedEvent struct {
	ID  SourceID
	Old SourceState
	New SourceState
}

// EventSink receives engine events. Implementations must not block; the
// mixer and sources deliver events synchronously from their hot paths.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// NopEventSink discards every event; the default when a caller supplies none.
var NopEventSink EventSink = EventSinkFunc(func(Event) {})
