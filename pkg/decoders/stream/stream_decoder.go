// Package stream adapts an arbitrary packet-oriented audio provider
// (network stream, ring feed, anything that isn't a local file) into a
// types.FrameDecoder, so File Source can play from it exactly like any
// other decoder. Kept from the teacher's original intent ("play from any
// source: network streams, buffers, etc.") and generalized onto the
// current frame-decoder contract.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ownaudio/goaudio/pkg/decoders/pcmconv"
)

// AudioFormat describes a packet's PCM layout.
type AudioFormat struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// AudioPacket is one chunk of PCM audio from a provider.
type AudioPacket struct {
	Audio        []byte
	SamplesCount int
	Format       AudioFormat
}

// AudioPacketProvider is implemented by anything that can hand back audio
// packets on demand: a network client, a live-capture buffer, a test
// fixture.
type AudioPacketProvider interface {
	// ReadAudioPacket reads the next packet, up to samples frames. Returns
	// io.EOF when the stream ends.
	ReadAudioPacket(ctx context.Context, samples int) (*AudioPacket, error)
}

// Decoder implements types.FrameDecoder over an AudioPacketProvider.
// Providers may change format mid-stream (e.g. a renegotiated network
// codec); the decoder tracks the latest format and exposes it via
// FormatChanges for callers that want to react (the Mixer/FileSource
// themselves do not; a format change mid-playback is surfaced as an
// event by the caller wrapping this decoder).
type Decoder struct {
	provider     AudioPacketProvider
	format       AudioFormat
	formatMx     sync.RWMutex
	formatChange chan AudioFormat
	ctx          context.Context
}

// NewDecoder creates a decoder pulling packets from provider, with an
// initial format used until the first packet (possibly) changes it.
func NewDecoder(ctx context.Context, provider AudioPacketProvider, initialFormat AudioFormat) *Decoder {
	return &Decoder{
		provider:     provider,
		format:       initialFormat,
		formatChange: make(chan AudioFormat, 1),
		ctx:          ctx,
	}
}

// StreamInfo reports the current format. Streaming sources have no known
// total duration.
func (d *Decoder) StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int) {
	d.formatMx.RLock()
	defer d.formatMx.RUnlock()
	return d.format.Channels, d.format.SampleRate, 0, d.format.BytesPerSample * 8
}

// DecodeNextFrame pulls one packet worth of frames (up to len(dst)/channels)
// from the provider.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	d.formatMx.RLock()
	channels := d.format.Channels
	bitDepth := d.format.BytesPerSample * 8
	d.formatMx.RUnlock()
	if channels == 0 {
		return 0, false, fmt.Errorf("stream: decoder has no channel count yet")
	}

	want := len(dst) / channels
	pkt, err := d.provider.ReadAudioPacket(d.ctx, want)
	if err != nil {
		return 0, true, err
	}
	if pkt.SamplesCount == 0 {
		return 0, false, nil
	}

	if d.formatChanged(pkt.Format) {
		d.formatMx.Lock()
		d.format = pkt.Format
		d.formatMx.Unlock()
		select {
		case d.formatChange <- pkt.Format:
		default:
		}
		bitDepth = pkt.Format.BytesPerSample * 8
		channels = pkt.Format.Channels
	}

	bytesNeeded := pkt.SamplesCount * channels * (bitDepth / 8)
	if bytesNeeded > len(pkt.Audio) {
		bytesNeeded = len(pkt.Audio)
	}
	out, cerr := pcmconv.BytesToFloat32(dst[:0], pkt.Audio[:bytesNeeded], bitDepth)
	if cerr != nil {
		return 0, false, cerr
	}
	copy(dst, out)
	return len(out) / channels, false, nil
}

func (d *Decoder) formatChanged(newFormat AudioFormat) bool {
	d.formatMx.RLock()
	defer d.formatMx.RUnlock()
	return d.format != newFormat
}

// FormatChanges reports provider-initiated format changes.
func (d *Decoder) FormatChanges() <-chan AudioFormat {
	return d.formatChange
}

// TrySeek is unsupported: packet-stream providers have no rewindable
// position, only a forward feed.
func (d *Decoder) TrySeek(position time.Duration) error {
	return fmt.Errorf("stream: seek not supported on packet-stream sources")
}

// Dispose is a no-op; the provider owns its own lifecycle.
func (d *Decoder) Dispose() error {
	return nil
}
