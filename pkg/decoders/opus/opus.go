// Package opus implements a types.FrameDecoder over
// github.com/drgolem/go-opus, promoted from an inert indirect dependency
// to a wired decoder. Mirrors the byte-buffer DecodeSamples contract
// drgolem's own go-flac binding uses.
package opus

import (
	"fmt"
	"time"

	goopus "github.com/drgolem/go-opus/opus"

	"github.com/ownaudio/goaudio/pkg/decoders/pcmconv"
)

const outputBitDepth = 16

// Decoder decodes Opus files into float32 frames.
type Decoder struct {
	path     string
	decoder  *goopus.OpusDecoder
	rate     int
	channels int
	scratch  []byte
}

// NewDecoder opens path and reads its Opus stream info.
func NewDecoder(path string) (*Decoder, error) {
	d := &Decoder{path: path}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) open() error {
	decoder, err := goopus.NewOpusDecoder(outputBitDepth)
	if err != nil {
		return fmt.Errorf("opus: create decoder: %w", err)
	}
	if err := decoder.Open(d.path); err != nil {
		decoder.Delete()
		return fmt.Errorf("opus: open %s: %w", d.path, err)
	}
	rate, channels, _ := decoder.GetFormat()
	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	return nil
}

// StreamInfo reports format. go-opus's frame decoder does not surface a
// total-sample count, so duration is reported as unknown, same as flac.
func (d *Decoder) StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int) {
	return d.channels, d.rate, 0, outputBitDepth
}

// DecodeNextFrame decodes up to len(dst)/channels frames into dst.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	if d.decoder == nil {
		return 0, false, fmt.Errorf("opus: decoder not open")
	}
	want := len(dst) / d.channels
	if want == 0 {
		return 0, false, nil
	}
	needBytes := want * d.channels * pcmconv.BytesPerSample(outputBitDepth)
	if cap(d.scratch) < needBytes {
		d.scratch = make([]byte, needBytes)
	}
	buf := d.scratch[:needBytes]

	n, err := d.decoder.DecodeSamples(want, buf)
	if err != nil {
		return 0, true, fmt.Errorf("opus: decode: %w", err)
	}
	if n == 0 {
		return 0, true, nil
	}

	out, cerr := pcmconv.BytesToFloat32(dst[:0], buf[:n*d.channels*pcmconv.BytesPerSample(outputBitDepth)], outputBitDepth)
	if cerr != nil {
		return 0, false, cerr
	}
	copy(dst, out)
	return n, n < want, nil
}

// TrySeek reopens the stream and fast-forwards, matching flac's strategy.
func (d *Decoder) TrySeek(position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("opus: seek target %v out of range", position)
	}
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	if err := d.open(); err != nil {
		return err
	}
	if position == 0 {
		return nil
	}

	targetFrame := uint64(position.Seconds() * float64(d.rate))
	discard := make([]float32, 4096*d.channels)
	var decoded uint64
	for decoded < targetFrame {
		want := targetFrame - decoded
		if want > uint64(len(discard)/d.channels) {
			want = uint64(len(discard) / d.channels)
		}
		n, eof, err := d.DecodeNextFrame(discard[:want*uint64(d.channels)])
		if err != nil {
			return err
		}
		decoded += uint64(n)
		if n == 0 || eof {
			break
		}
	}
	return nil
}

// Dispose releases the decoder.
func (d *Decoder) Dispose() error {
	if d.decoder == nil {
		return nil
	}
	d.decoder.Close()
	d.decoder.Delete()
	d.decoder = nil
	return nil
}
