// Package sink implements the engine's C9 component: the Sink Façade, the
// one place platform audio I/O is reached. It wraps
// github.com/drgolem/go-portaudio the same way the teacher's
// pkg/audioplayer.Player and internal/fileplayer.FilePlayer do — a
// *portaudio.PaStream opened in callback mode — generalized to the full
// device-enumeration/init/start/stop/send/receive contract the Mixer and
// Sink Pump depend on through types.Sink.
package sink

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/ownaudio/goaudio/pkg/types"
)

// PortAudioSink is the C9 component for the PortAudio backend. One
// implementation-swap point per platform (spec §4.9); on this stack that
// swap point is PortAudio's own host-API selection.
type PortAudioSink struct {
	deviceIndex int

	mu     sync.Mutex
	stream *portaudio.PaStream
	config types.AudioConfig

	outBuf  chan []float32
	started bool
}

// New creates a façade targeting deviceIndex. Call Initialize before Start.
func New(deviceIndex int) *PortAudioSink {
	return &PortAudioSink{deviceIndex: deviceIndex}
}

// Initialize opens the platform stream at config's sample rate/channels,
// in callback mode, matching the teacher's own stream setup. Per spec
// §4.9 this may block 50-5000ms; callers wanting an async variant should
// run it in their own goroutine.
func (s *PortAudioSink) Initialize(config types.AudioConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = config
	s.outBuf = make(chan []float32, 4)

	s.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  s.deviceIndex,
			ChannelCount: config.Channels,
			SampleFormat: portaudio.SampleFmtFloat32,
		},
		SampleRate: float64(config.SampleRate),
	}

	if err := s.stream.OpenCallback(config.FramesPerBuffer, s.callback); err != nil {
		return fmt.Errorf("sink: open stream: %w", err)
	}
	return nil
}

func (s *PortAudioSink) callback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	need := int(frameCount) * s.config.Channels * 4

	select {
	case buf := <-s.outBuf:
		n := encodeFloat32LE(output, buf)
		if n < need {
			clearBytes(output[n:need])
		}
	default:
		clearBytes(output[:need])
	}

	return portaudio.Continue
}

// encodeFloat32LE writes as many samples from src as fit into dst,
// little-endian, and returns the byte count written.
func encodeFloat32LE(dst []byte, src []float32) int {
	n := min(len(dst)/4, len(src))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
	}
	return n * 4
}

// Start begins the stream.
func (s *PortAudioSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("sink: start stream: %w", err)
	}
	s.started = true
	return nil
}

// Stop halts the stream, bounded at ~2s per spec §4.9/§5.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	done := make(chan error, 1)
	go func() { done <- s.stream.StopStream() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("sink: stop stream timed out")
	}
}

// SendFrames delivers interleaved samples to the callback, blocking up to
// 20 ms if the internal handoff channel is full; if the channel is still
// full after that, the samples are dropped.
func (s *PortAudioSink) SendFrames(samples []float32) {
	cp := append([]float32(nil), samples...)
	select {
	case s.outBuf <- cp:
	case <-time.After(20 * time.Millisecond):
	}
}

// TrySendFrames is the non-blocking variant.
func (s *PortAudioSink) TrySendFrames(samples []float32) (int, error) {
	cp := append([]float32(nil), samples...)
	select {
	case s.outBuf <- cp:
		return len(samples), nil
	default:
		return 0, types.ErrInsufficientSpace
	}
}

// ReceiveFrames is the capture path. The PortAudio backend here is
// output-only (no input stream opened), so it always reports zero frames
// captured; a future capture-enabled sink would open an InputParameters
// stream and drain it here.
func (s *PortAudioSink) ReceiveFrames(dst []float32) int {
	return 0
}

// EnumerateOutputs lists candidate output devices.
func (s *PortAudioSink) EnumerateOutputs() ([]types.DeviceInfo, error) {
	count, err := portaudio.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("sink: device count: %w", err)
	}
	var out []types.DeviceInfo
	for i := 0; i < count; i++ {
		info, err := portaudio.GetDeviceInfo(i)
		if err != nil {
			continue
		}
		if info.MaxOutputChannels > 0 {
			out = append(out, types.DeviceInfo{
				Index:      i,
				Name:       info.Name,
				MaxOutputs: info.MaxOutputChannels,
				MaxInputs:  info.MaxInputChannels,
			})
		}
	}
	return out, nil
}

// EnumerateInputs lists candidate input devices.
func (s *PortAudioSink) EnumerateInputs() ([]types.DeviceInfo, error) {
	count, err := portaudio.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("sink: device count: %w", err)
	}
	var out []types.DeviceInfo
	for i := 0; i < count; i++ {
		info, err := portaudio.GetDeviceInfo(i)
		if err != nil {
			continue
		}
		if info.MaxInputChannels > 0 {
			out = append(out, types.DeviceInfo{
				Index:      i,
				Name:       info.Name,
				MaxOutputs: info.MaxOutputChannels,
				MaxInputs:  info.MaxInputChannels,
			})
		}
	}
	return out, nil
}

// DefaultOutput returns the platform's default output device.
func (s *PortAudioSink) DefaultOutput() (types.DeviceInfo, error) {
	idx, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return types.DeviceInfo{}, fmt.Errorf("sink: default output device: %w", err)
	}
	info, err := portaudio.GetDeviceInfo(idx)
	if err != nil {
		return types.DeviceInfo{}, err
	}
	return types.DeviceInfo{Index: idx, Name: info.Name, MaxOutputs: info.MaxOutputChannels, MaxInputs: info.MaxInputChannels, IsDefault: true}, nil
}

// DefaultInput returns the platform's default input device.
func (s *PortAudioSink) DefaultInput() (types.DeviceInfo, error) {
	idx, err := portaudio.DefaultInputDevice()
	if err != nil {
		return types.DeviceInfo{}, fmt.Errorf("sink: default input device: %w", err)
	}
	info, err := portaudio.GetDeviceInfo(idx)
	if err != nil {
		return types.DeviceInfo{}, err
	}
	return types.DeviceInfo{Index: idx, Name: info.Name, MaxOutputs: info.MaxOutputChannels, MaxInputs: info.MaxInputChannels, IsDefault: true}, nil
}

// FramesPerBuffer returns the configured device period, in frames.
func (s *PortAudioSink) FramesPerBuffer() int {
	return s.config.FramesPerBuffer
}

// Dispose closes the stream's callback handle.
func (s *PortAudioSink) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.CloseCallback()
	s.stream = nil
	return err
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
