// Package mp3 implements a types.FrameDecoder over
// github.com/imcarsen/go-mp3, a pure-Go decoder replacing the teacher's
// cgo mpg123 binding (never declared in the teacher's own go.mod, so
// ungrounded — see DESIGN.md). go-mp3 always decodes to 16-bit stereo
// PCM at its reported sample rate.
package mp3

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imcarsen/go-mp3"

	"github.com/ownaudio/goaudio/pkg/decoders/pcmconv"
)

const channels = 2
const bitDepth = 16

// Decoder decodes MP3 files into float32 frames.
type Decoder struct {
	path    string
	file    *os.File
	decoder *mp3.Decoder
	rate    int
	scratch []byte
}

// NewDecoder opens path and primes the MP3 decoder.
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
		return fmt.Errorf("mp3: open: %w", err)
	}
	dec, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("mp3: create decoder: %w", err)
	}
	d.file = file
	d.decoder = dec
	d.rate = dec.SampleRate()
	return nil
}

// StreamInfo reports the stream's native format and duration, computed
// from the decoder's total PCM byte length.
func (d *Decoder) StreamInfo() (ch, sampleRate int, duration time.Duration, bits int) {
	totalBytes := d.decoder.Length()
	bytesPerFrame := int64(channels * pcmconv.BytesPerSample(bitDepth))
	var dur time.Duration
	if bytesPerFrame > 0 && d.rate > 0 {
		totalFrames := totalBytes / bytesPerFrame
		dur = time.Duration(float64(totalFrames) / float64(d.rate) * float64(time.Second))
	}
	return channels, d.rate, dur, bitDepth
}

// DecodeNextFrame decodes up to len(dst)/channels frames into dst.
func (d *Decoder) DecodeNextFrame(dst []float32) (framesRead int, isEOF bool, err error) {
	want := len(dst) / channels
	if want == 0 {
		return 0, false, nil
	}
	needBytes := want * channels * pcmconv.BytesPerSample(bitDepth)
	if cap(d.scratch) < needBytes {
		d.scratch = make([]byte, needBytes)
	}
	buf := d.scratch[:needBytes]

	n, err := io.ReadFull(d.decoder, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, false, fmt.Errorf("mp3: decode: %w", err)
	}
	eof := err == io.EOF || err == io.ErrUnexpectedEOF

	frames := n / (channels * pcmconv.BytesPerSample(bitDepth))
	out := pcmconv.Int16LEToFloat32(dst[:0], buf[:frames*channels*pcmconv.BytesPerSample(bitDepth)])
	copy(dst, out)
	return frames, eof, nil
}

// TrySeek seeks to position using the decoder's byte-offset Seek, which
// go-mp3 supports directly against its underlying io.ReadSeeker.
func (d *Decoder) TrySeek(position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("mp3: seek target %v out of range", position)
	}
	byteOffset := int64(position.Seconds()*float64(d.rate)) * int64(channels) * int64(pcmconv.BytesPerSample(bitDepth))
	_, err := d.decoder.Seek(byteOffset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("mp3: seek: %w", err)
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
	d.decoder = nil
	return err
}
