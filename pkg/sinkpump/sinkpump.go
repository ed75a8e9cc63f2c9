// Package sinkpump implements the engine's C8 component: it adapts a
// potentially-blocking platform sink to a lock-free producer API, the way
// the teacher's pkg/audioplayer.Player adapts a blocking PortAudio stream
// to its ring-buffer producer/consumer split, generalized so any producer
// (not just the Mixer) can push frames without blocking on device I/O.
package sinkpump

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ownaudio/goaudio/pkg/ringbuffer"
	"github.com/ownaudio/goaudio/pkg/types"
)

// minBufferMultiple is how many device periods the pump's ring is sized
// for, so the pump thread can fall behind by a full device period without
// an overflow (spec §4.8: "sized for at least two device buffers").
const minBufferMultiple = 2

// Pump is the C8 component: a ring buffer plus a dedicated pump goroutine
// that drains it into sink.SendFrames.
type Pump struct {
	sink *ringbuffer.RingBuffer
	dst  types.Sink

	framesPerBuffer int
	channels        int

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// New creates a pump writing to dst, sized for minBufferMultiple device
// periods of audio.FramesPerBuffer*audio.Channels samples.
func New(dst types.Sink, audio types.AudioConfig) *Pump {
	fpb := audio.FramesPerBuffer
	if fpb <= 0 {
		fpb = dst.FramesPerBuffer()
	}
	return &Pump{
		sink:            ringbuffer.New(uint64(fpb * audio.Channels * minBufferMultiple)),
		dst:             dst,
		framesPerBuffer: fpb,
		channels:        audio.Channels,
	}
}

// Push enqueues samples for the pump thread to drain. Non-blocking: it is
// a short write on overflow, matching the ring buffer's overflow policy.
// Returns the number of samples actually enqueued.
func (p *Pump) Push(samples []float32) int {
	return p.sink.Write(samples)
}

// Start begins the pump thread.
func (p *Pump) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.wg.Add(1)
	go p.pumpLoop()
}

// Stop joins the pump thread with a 2s timeout (spec §4.8); after that it
// abandons the goroutine (Go has no forced thread interruption, so this is
// the idiomatic approximation of "requests thread interruption").
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		slog.Warn("sinkpump: pump thread did not exit within 2s")
	}
}

func (p *Pump) pumpLoop() {
	defer p.wg.Done()

	period := time.Duration(0)
	if p.dst.FramesPerBuffer() > 0 {
		period = time.Second / time.Duration(max(p.dst.FramesPerBuffer(), 1))
	}
	sleepFraction := period / 10
	if sleepFraction <= 0 {
		sleepFraction = 100 * time.Microsecond
	}

	buf := make([]float32, p.framesPerBuffer*max(p.channels, 1))

	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		n := p.sink.Read(buf)
		if n == 0 {
			time.Sleep(sleepFraction)
			continue
		}

		p.dst.SendFrames(buf)
	}
}
