package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/types"
)

type fakeSink struct {
	mu   sync.Mutex
	sent int
	fpb  int
}

func (s *fakeSink) Initialize(types.AudioConfig) error { return nil }
func (s *fakeSink) Start() error                       { return nil }
func (s *fakeSink) Stop() error                         { return nil }
func (s *fakeSink) SendFrames(buf []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
}
func (s *fakeSink) TrySendFrames(buf []float32) (int, error)      { return len(buf), nil }
func (s *fakeSink) ReceiveFrames([]float32) int                   { return 0 }
func (s *fakeSink) EnumerateOutputs() ([]types.DeviceInfo, error) { return nil, nil }
func (s *fakeSink) EnumerateInputs() ([]types.DeviceInfo, error)  { return nil, nil }
func (s *fakeSink) DefaultOutput() (types.DeviceInfo, error)      { return types.DeviceInfo{}, nil }
func (s *fakeSink) DefaultInput() (types.DeviceInfo, error)       { return types.DeviceInfo{}, nil }
func (s *fakeSink) FramesPerBuffer() int                          { return s.fpb }
func (s *fakeSink) Dispose() error                                { return nil }

func testConfig() Config {
	return Config{
		Audio:      types.AudioConfig{SampleRate: 48000, Channels: 2, FramesPerBuffer: 256},
		ClockMode:  masterclock.Realtime,
		MaxSources: 4,
	}
}

func TestNewWiresClockMixerAndSink(t *testing.T) {
	sink := &fakeSink{fpb: 256}
	e, err := New(sink, testConfig())
	require.NoError(t, err)

	assert.NotNil(t, e.Clock())
	assert.NotNil(t, e.Mixer())
	assert.Equal(t, 48000, e.AudioConfig().SampleRate)
}

func TestStartStopRunsCleanly(t *testing.T) {
	sink := &fakeSink{fpb: 256}
	e, err := New(sink, testConfig())
	require.NoError(t, err)

	require.NoError(t, e.Start())
	require.NoError(t, e.Stop())
}

func TestRemoveUnknownSourceErrors(t *testing.T) {
	sink := &fakeSink{fpb: 256}
	e, err := New(sink, testConfig())
	require.NoError(t, err)

	err = e.RemoveSource(types.NewSourceID())
	assert.Error(t, err)
}

func TestAttachToGhostRequiresEnsureGhostFirst(t *testing.T) {
	sink := &fakeSink{fpb: 256}
	e, err := New(sink, testConfig())
	require.NoError(t, err)

	err = e.AttachToGhost(nil)
	assert.Error(t, err)
}
