// Package engine wires the audio config, Master Clock, Mixer and Sink
// into one explicitly-constructed value, replacing the teacher's pattern
// of building everything by hand inside cmd/player.go's runPlayer and
// cmd/fileplayer.go's runPlaylist with a single reusable type any caller
// (CLI or otherwise) constructs once and drives.
package engine

import (
	"fmt"
	"sync"

	"github.com/ownaudio/goaudio/pkg/decoders"
	"github.com/ownaudio/goaudio/pkg/filesource"
	"github.com/ownaudio/goaudio/pkg/ghostsource"
	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/mixer"
	"github.com/ownaudio/goaudio/pkg/recorder"
	"github.com/ownaudio/goaudio/pkg/types"
)

// Config configures a new Engine.
type Config struct {
	Audio      types.AudioConfig
	ClockMode  masterclock.Mode
	MaxSources int
	EventSink  types.EventSink
}

// Engine owns the Master Clock, Mixer and Sink for one playback session,
// plus the optional sync-group Ghost Source.
type Engine struct {
	audio  types.AudioConfig
	clock  *masterclock.Clock
	mixer  *mixer.Mixer
	sink   types.Sink
	events types.EventSink

	mu      sync.Mutex
	ghost   *ghostsource.Ghost
	sources map[types.SourceID]*filesource.FileSource

	rec *recorder.WAVRecorder
}

// New wires a fresh Engine against sink. The caller is responsible for
// platform init (e.g. portaudio.Initialize) before New, same division of
// responsibility the teacher's cmd/player.go observes.
func New(sink types.Sink, cfg Config) (*Engine, error) {
	if err := sink.Initialize(cfg.Audio); err != nil {
		return nil, fmt.Errorf("engine: initialize sink: %w", err)
	}

	clock := masterclock.New(cfg.Audio.SampleRate, cfg.ClockMode)
	mx := mixer.New(clock, sink, cfg.Audio, mixer.Config{
		MaxSources: cfg.MaxSources,
		EventSink:  cfg.EventSink,
	})

	return &Engine{
		audio:   cfg.Audio,
		clock:   clock,
		mixer:   mx,
		sink:    sink,
		events:  cfg.EventSink,
		sources: make(map[types.SourceID]*filesource.FileSource),
	}, nil
}

// Start begins the sink and the mixing thread.
func (e *Engine) Start() error {
	return e.mixer.Start()
}

// Stop halts the mixing thread, disposes every attached source and stops
// the sink.
func (e *Engine) Stop() error {
	e.mu.Lock()
	sources := make([]*filesource.FileSource, 0, len(e.sources))
	for _, s := range e.sources {
		sources = append(sources, s)
	}
	e.mu.Unlock()

	for _, s := range sources {
		s.Dispose()
	}

	if err := e.mixer.Stop(); err != nil {
		return err
	}
	if e.rec != nil {
		e.rec.Close()
		e.rec = nil
	}
	return e.sink.Dispose()
}

// AddFile opens fileName with the extension-matched decoder, wraps it in a
// FileSource and attaches it to the mixer.
func (e *Engine) AddFile(fileName string, loop bool) (*filesource.FileSource, error) {
	decoder, err := decoders.NewDecoder(fileName)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", fileName, err)
	}

	src := filesource.New(decoder, filesource.Config{
		Audio:     e.audio,
		FileName:  fileName,
		Loop:      loop,
		Volume:    1.0,
		EventSink: e.events,
	})

	if err := e.mixer.AddSource(src); err != nil {
		decoder.Dispose()
		return nil, err
	}

	e.mu.Lock()
	e.sources[src.ID()] = src
	e.mu.Unlock()
	return src, nil
}

// RemoveSource detaches and disposes a source previously added with AddFile.
func (e *Engine) RemoveSource(id types.SourceID) error {
	e.mu.Lock()
	src, ok := e.sources[id]
	if ok {
		delete(e.sources, id)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine: unknown source %s", id)
	}

	e.mixer.RemoveSource(id)
	return src.Dispose()
}

// EnsureGhost lazily creates the sync-group Ghost Source, sized for
// totalFrames.
func (e *Engine) EnsureGhost(totalFrames uint64) *ghostsource.Ghost {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ghost == nil {
		e.ghost = ghostsource.New()
	}
	e.ghost.Resize(totalFrames)
	return e.ghost
}

// AttachToGhost attaches src to the engine's Ghost Source and the Master
// Clock, so its position and tempo/pitch track the sync group.
func (e *Engine) AttachToGhost(src *filesource.FileSource) error {
	e.mu.Lock()
	ghost := e.ghost
	e.mu.Unlock()
	if ghost == nil {
		return fmt.Errorf("engine: no ghost source; call EnsureGhost first")
	}
	return src.AttachToClock(e.clock, ghost)
}

// StartRecording begins mirroring every mixed frame to a WAV file at path.
func (e *Engine) StartRecording(path string) error {
	rec, err := recorder.New(path, e.audio)
	if err != nil {
		return err
	}
	e.mixer.StartRecording(rec)
	e.rec = rec
	return nil
}

// StopRecording finalizes and closes the active recording, if any.
func (e *Engine) StopRecording() error {
	if e.rec == nil {
		return nil
	}
	err := e.mixer.StopRecording()
	e.rec = nil
	return err
}

// AddMasterEffect appends e to the master effects chain, applied to the
// mixed output after every source is summed.
func (e *Engine) AddMasterEffect(eff types.Effect) error {
	if err := eff.Initialize(e.audio); err != nil {
		return fmt.Errorf("engine: initialize master effect %s: %w", eff.Name(), err)
	}
	e.mixer.AddMasterEffect(eff)
	return nil
}

// RemoveMasterEffect removes the first master effect with the given name.
func (e *Engine) RemoveMasterEffect(name string) {
	e.mixer.RemoveMasterEffect(name)
}

// Source returns the FileSource previously returned by AddFile for id, if
// it is still attached.
func (e *Engine) Source(id types.SourceID) (*filesource.FileSource, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	src, ok := e.sources[id]
	return src, ok
}

// Clock returns the engine's Master Clock.
func (e *Engine) Clock() *masterclock.Clock { return e.clock }

// Mixer returns the engine's Mixer.
func (e *Engine) Mixer() *mixer.Mixer { return e.mixer }

// AudioConfig returns the engine's fixed audio configuration.
func (e *Engine) AudioConfig() types.AudioConfig { return e.audio }
