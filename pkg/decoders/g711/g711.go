// Package g711 implements a types.FrameDecoder over github.com/zaf/g711,
// promoted from an inert indirect dependency to a wired decoder for
// headerless mono telephony PCM (mu-law or A-law at a fixed sample rate,
// conventionally 8kHz).
package g711

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zaf/g711"
)

// Law selects the companding scheme of the raw stream.
type Law int

const (
	MuLaw Law = iota
	ALaw
)

const channels = 1

// Decoder decodes raw G.711-encoded byte streams into float32 frames.
type Decoder struct {
	path      string
	sampleRate int
	law       Law

	file    *os.File
	scratch []byte
}

// NewDecoder opens a raw G.711 stream at path, encoded per law at
// sampleRate (callers must know these out of band — G.711 streams carry
// no header).
func NewDecoder(path string, law Law, sampleRate int) (*Decoder, error) {
	d := &Decoder{path: path, law: law, sampleRate: sampleRate}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) open() error {
	file, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("g711: open: %w", err)
	}
	d.file = file
	return nil
}

// StreamInfo reports the (externally supplied) format. Duration is
// computed from the raw file size, since one encoded byte is exactly one
// sample in both G.711 laws.
func (d *Decoder) StreamInfo() (ch, sampleRate int, duration time.Duration, bitDepth int) {
	var dur time.Duration
	if info, err := d.file.Stat(); err == nil && d.sampleRate > 0 {
		dur = time.Duration(float64(info.Size()) / float64(d.sampleRate) * float64(time.Second))
	}
	return channels, d.sampleRate, dur, 16
}

// DecodeNextFrame decodes up to len(dst) frames (mono, so frames==samples).
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	want := len(dst)
	if want == 0 {
		return 0, false, nil
	}
	if cap(d.scratch) < want {
		d.scratch = make([]byte, want)
	}
	buf := d.scratch[:want]

	n, err := d.file.Read(buf)
	if err != nil && err != io.EOF {
		return 0, false, fmt.Errorf("g711: read: %w", err)
	}
	eof := err == io.EOF || n < want

	var pcm []int16
	switch d.law {
	case MuLaw:
		pcm = g711.DecodeUlaw(buf[:n])
	case ALaw:
		pcm = g711.DecodeAlaw(buf[:n])
	}
	for i, v := range pcm {
		dst[i] = float32(v) / 32768.0
	}
	return len(pcm), eof, nil
}

// TrySeek seeks directly, since one byte is one sample for G.711.
func (d *Decoder) TrySeek(position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("g711: seek target %v out of range", position)
	}
	offset := int64(position.Seconds() * float64(d.sampleRate))
	_, err := d.file.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("g711: seek: %w", err)
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
	return err
}
