package sinkpump

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownaudio/goaudio/pkg/types"
)

type fakeSink struct {
	mu   sync.Mutex
	sent [][]float32
	fpb  int
}

func (s *fakeSink) Initialize(types.AudioConfig) error { return nil }
func (s *fakeSink) Start() error                       { return nil }
func (s *fakeSink) Stop() error                        { return nil }
func (s *fakeSink) SendFrames(buf []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, append([]float32(nil), buf...))
}
func (s *fakeSink) TrySendFrames(buf []float32) (int, error)     { return len(buf), nil }
func (s *fakeSink) ReceiveFrames([]float32) int                  { return 0 }
func (s *fakeSink) EnumerateOutputs() ([]types.DeviceInfo, error) { return nil, nil }
func (s *fakeSink) EnumerateInputs() ([]types.DeviceInfo, error)  { return nil, nil }
func (s *fakeSink) DefaultOutput() (types.DeviceInfo, error)      { return types.DeviceInfo{}, nil }
func (s *fakeSink) DefaultInput() (types.DeviceInfo, error)       { return types.DeviceInfo{}, nil }
func (s *fakeSink) FramesPerBuffer() int                          { return s.fpb }
func (s *fakeSink) Dispose() error                                { return nil }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestPushThenPumpDeliversToSink(t *testing.T) {
	sink := &fakeSink{fpb: 64}
	audio := types.AudioConfig{SampleRate: 48000, Channels: 2, FramesPerBuffer: 8}
	p := New(sink, audio)

	p.Push([]float32{1, 2, 3, 4, 5, 6, 7, 8})
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool { return sink.count() > 0 }, time.Second, time.Millisecond)
}

func TestStopJoinsPumpThread(t *testing.T) {
	sink := &fakeSink{fpb: 64}
	audio := types.AudioConfig{SampleRate: 48000, Channels: 1, FramesPerBuffer: 8}
	p := New(sink, audio)

	p.Start()
	p.Stop()
	// Starting again after Stop must work cleanly.
	p.Start()
	p.Stop()
}

func TestPushIsNonBlockingShortWriteOnOverflow(t *testing.T) {
	sink := &fakeSink{fpb: 8}
	audio := types.AudioConfig{SampleRate: 48000, Channels: 1, FramesPerBuffer: 4}
	p := New(sink, audio)

	huge := make([]float32, 1<<20)
	n := p.Push(huge)
	assert.LessOrEqual(t, n, len(huge))
	assert.Greater(t, n, 0)
}
