// Package resample implements a types.FrameDecoder decorator wrapping
// another decoder with github.com/zaf/resample (a libsoxr binding),
// moved from the teacher's one-off CLI usage into a reusable
// decoder-boundary rate converter. zaf/resample is a push (io.Writer)
// API, so this decorator feeds it 16-bit PCM and drains the resampled
// bytes back out through an internal buffer.
package resample

import (
	"bytes"
	"fmt"
	"time"

	"github.com/zaf/resample"

	"github.com/ownaudio/goaudio/pkg/decoders/pcmconv"
	"github.com/ownaudio/goaudio/pkg/types"
)

// Decoder resamples inner's output to outRate.
type Decoder struct {
	inner    types.FrameDecoder
	inRate   int
	outRate  int
	channels int
	bitDepth int
	duration time.Duration

	out        bytes.Buffer
	resampler  *resample.Resampler
	innerScratch []float32
	byteScratch  []byte
	innerEOF   bool
}

// New wraps inner, converting its native sample rate to outRate. inner's
// channel count and bit depth pass through unchanged.
func New(inner types.FrameDecoder, outRate int) (*Decoder, error) {
	channels, inRate, duration, bitDepth := inner.StreamInfo()
	d := &Decoder{
		inner:    inner,
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		bitDepth: bitDepth,
		duration: duration,
	}
	if err := d.newResampler(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) newResampler() error {
	r, err := resample.New(&d.out, float64(d.inRate), float64(d.outRate), d.channels, resample.I16, resample.HighQ)
	if err != nil {
		return fmt.Errorf("resample: create resampler: %w", err)
	}
	d.resampler = r
	return nil
}

// StreamInfo reports the post-resample format.
func (d *Decoder) StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int) {
	return d.channels, d.outRate, d.duration, d.bitDepth
}

// DecodeNextFrame fills dst with resampled frames, pulling and feeding
// more input from inner as needed.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	wantFrames := len(dst) / d.channels
	if wantFrames == 0 {
		return 0, false, nil
	}
	bytesPerFrame := d.channels * 2

	for d.out.Len() < wantFrames*bytesPerFrame && !d.innerEOF {
		if cap(d.innerScratch) < wantFrames*d.channels {
			d.innerScratch = make([]float32, wantFrames*d.channels)
		}
		scratch := d.innerScratch[:wantFrames*d.channels]

		n, eof, derr := d.inner.DecodeNextFrame(scratch)
		if derr != nil {
			return 0, false, fmt.Errorf("resample: inner decode: %w", derr)
		}
		if n > 0 {
			d.byteScratch = pcmconv.Float32ToInt16LE(d.byteScratch[:0], scratch[:n*d.channels])
			if _, werr := d.resampler.Write(d.byteScratch); werr != nil {
				return 0, false, fmt.Errorf("resample: write: %w", werr)
			}
		}
		if eof {
			d.innerEOF = true
		}
	}

	available := d.out.Len() / bytesPerFrame
	n := available
	if n > wantFrames {
		n = wantFrames
	}
	if n == 0 {
		return 0, d.innerEOF, nil
	}

	raw := d.out.Next(n * bytesPerFrame)
	out := pcmconv.Int16LEToFloat32(dst[:0], raw)
	copy(dst, out)

	eof := d.innerEOF && d.out.Len() == 0
	return n, eof, nil
}

// TrySeek delegates to inner and resets the resampler's internal state,
// since stale resampled residue from before the seek must not bleed
// through.
func (d *Decoder) TrySeek(position time.Duration) error {
	if err := d.inner.TrySeek(position); err != nil {
		return err
	}
	d.out.Reset()
	d.innerEOF = false
	if d.resampler != nil {
		d.resampler.Close()
	}
	return d.newResampler()
}

// Dispose closes the resampler and the inner decoder.
func (d *Decoder) Dispose() error {
	if d.resampler != nil {
		d.resampler.Close()
		d.resampler = nil
	}
	return d.inner.Dispose()
}
