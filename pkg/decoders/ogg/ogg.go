// Package ogg implements a types.FrameDecoder over
// github.com/jfreymuth/oggvorbis, promoted from an inert indirect
// dependency in the teacher's go.mod to a wired decoder. oggvorbis.Reader
// already reads directly into interleaved float32, so no PCM conversion
// layer is needed here.
package ogg

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jfreymuth/oggvorbis"
)

// Decoder decodes Ogg Vorbis files into float32 frames.
type Decoder struct {
	path     string
	file     *os.File
	reader   *oggvorbis.Reader
	channels int
	rate     int
}

// NewDecoder opens path and reads its Vorbis stream headers.
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
		return fmt.Errorf("ogg: open: %w", err)
	}
	r, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("ogg: create reader: %w", err)
	}
	d.file = file
	d.reader = r
	d.channels = r.Channels()
	d.rate = r.SampleRate()
	return nil
}

// StreamInfo reports the stream's format and duration.
func (d *Decoder) StreamInfo() (channels, sampleRate int, duration time.Duration, bitDepth int) {
	var dur time.Duration
	if length := d.reader.Length(); length >= 0 && d.rate > 0 {
		dur = time.Duration(float64(length) / float64(d.rate) * float64(time.Second))
	}
	return d.channels, d.rate, dur, 32
}

// DecodeNextFrame decodes up to len(dst)/channels frames into dst.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	n, err := d.reader.Read(dst)
	if err != nil && err != io.EOF {
		return 0, false, fmt.Errorf("ogg: decode: %w", err)
	}
	eof := err == io.EOF
	frames := n / d.channels
	return frames, eof, nil
}

// TrySeek moves to the given position by sample offset, via the reader's
// native seek support over the underlying os.File.
func (d *Decoder) TrySeek(position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("ogg: seek target %v out of range", position)
	}
	target := int64(position.Seconds() * float64(d.rate))
	if err := d.reader.SetPosition(target); err != nil {
		return fmt.Errorf("ogg: seek: %w", err)
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
