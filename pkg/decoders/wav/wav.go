// Package wav implements a types.FrameDecoder over github.com/youpy/go-wav,
// unchanged in its library choice from the teacher, generalized from a
// byte-buffer DecodeSamples contract to the float32 frame contract the
// engine's File Source expects.
package wav

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"
)

// Decoder decodes PCM WAV files into float32 frames.
type Decoder struct {
	path     string
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	bps      int
	position uint64 // frames decoded since the last seek/open
}

// NewDecoder opens path and reads its WAV header.
func NewDecoder(path string) (*Decoder, error) {
	d := &Decoder{path: path}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) open() error {
	file, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("wav: open: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("wav: read format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("wav: unsupported format %d (only PCM)", format.AudioFormat)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.bps = int(format.BitsPerSample)
	d.position = 0
	return nil
}

// StreamInfo reports the decoder's native format. Duration is computed on
// each call from the size of the whole file (header included), since go-wav
// does not expose a frame count directly.
func (d *Decoder) StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int) {
	info, err := d.file.Stat()
	if err != nil {
		return d.channels, d.rate, 0, d.bps
	}
	bytesPerFrame := int64(d.channels * (d.bps / 8))
	if bytesPerFrame == 0 || d.rate == 0 {
		return d.channels, d.rate, 0, d.bps
	}
	totalFrames := info.Size() / bytesPerFrame
	duration = time.Duration(float64(totalFrames) / float64(d.rate) * float64(time.Second))
	return d.channels, d.rate, duration, d.bps
}

// DecodeNextFrame decodes up to len(dst)/channels frames into dst.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	if d.reader == nil {
		return 0, false, fmt.Errorf("wav: decoder not open")
	}
	want := len(dst) / d.channels
	if want == 0 {
		return 0, false, nil
	}

	samples, err := d.reader.ReadSamples(want)
	if err != nil && err != io.EOF {
		return 0, false, fmt.Errorf("wav: decode: %w", err)
	}

	n := 0
	for _, s := range samples {
		for ch := 0; ch < d.channels; ch++ {
			idx := n*d.channels + ch
			if idx >= len(dst) {
				break
			}
			dst[idx] = normalize(s.Values[ch], d.bps)
		}
		n++
	}
	d.position += uint64(n)

	eof := err == io.EOF || len(samples) == 0
	return n, eof, nil
}

func normalize(v int, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return (float32(v) - 128) / 128.0
	case 16:
		return float32(v) / 32768.0
	case 24:
		return float32(v) / 8388608.0
	case 32:
		return float32(v) / 2147483648.0
	default:
		return 0
	}
}

// TrySeek reopens the file and fast-forwards to position, since go-wav's
// Reader is a forward-only stream parser with no native seek support.
func (d *Decoder) TrySeek(position time.Duration) error {
	_, rate, duration, _ := d.StreamInfo()
	if position < 0 || position > duration {
		return fmt.Errorf("wav: seek target %v out of range [0, %v]", position, duration)
	}

	if d.file != nil {
		d.file.Close()
	}
	if err := d.open(); err != nil {
		return err
	}

	targetFrame := uint64(position.Seconds() * float64(rate))
	discard := make([]float32, 4096*d.channels)
	for d.position < targetFrame {
		want := targetFrame - d.position
		if want > uint64(len(discard)/d.channels) {
			want = uint64(len(discard) / d.channels)
		}
		n, eof, err := d.DecodeNextFrame(discard[:want*uint64(d.channels)])
		if err != nil {
			return err
		}
		if n == 0 || eof {
			break
		}
	}
	return nil
}

// Dispose closes the underlying file.
func (d *Decoder) Dispose() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.reader = nil
	return err
}
