// Package recorder implements the mixer's optional recording sink: a
// RIFF/WAVE writer satisfying mixer.Recorder, grounded on the teacher's
// cmd/transform.go writeWAVFile helper, generalized from a one-shot
// whole-buffer write into an incremental WriteSamples/Close contract the
// Mixer can call once per mix cycle.
package recorder

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"

	"github.com/ownaudio/goaudio/pkg/decoders/pcmconv"
	"github.com/ownaudio/goaudio/pkg/types"
)

// WAVRecorder accumulates mixed float32 frames and writes them out as a
// 16-bit PCM WAV file on Close.
type WAVRecorder struct {
	file     *os.File
	audio    types.AudioConfig
	pcm      []byte
	scratch  []byte
	samples  uint32
}

// New creates a recorder writing to path at the engine's audio config.
// The WAV header is finalized only on Close, since the total sample count
// (required by go-wav's NewWriter) isn't known until recording stops.
func New(path string, audio types.AudioConfig) (*WAVRecorder, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}
	return &WAVRecorder{file: file, audio: audio}, nil
}

// WriteSamples appends one mix cycle's interleaved float32 frames.
func (r *WAVRecorder) WriteSamples(buf []float32) error {
	r.scratch = pcmconv.Float32ToInt16LE(r.scratch[:0], buf)
	r.pcm = append(r.pcm, r.scratch...)
	r.samples += uint32(len(buf) / r.audio.Channels)
	return nil
}

// Close writes the accumulated PCM data as a complete WAV file and closes
// the underlying handle. Calls after the first are no-ops.
func (r *WAVRecorder) Close() error {
	if r.file == nil {
		return nil
	}
	defer func() {
		r.file.Close()
		r.file = nil
	}()

	w := wav.NewWriter(r.file, r.samples, uint16(r.audio.Channels), uint32(r.audio.SampleRate), 16)
	if _, err := w.Write(r.pcm); err != nil {
		return fmt.Errorf("recorder: write WAV data: %w", err)
	}
	return nil
}
