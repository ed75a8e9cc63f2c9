package mixer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownaudio/goaudio/pkg/masterclock"
	"github.com/ownaudio/goaudio/pkg/types"
)

type fakeSink struct {
	mu    sync.Mutex
	sent  [][]float32
	start bool
}

func (s *fakeSink) Initialize(types.AudioConfig) error { return nil }
func (s *fakeSink) Start() error                       { s.start = true; return nil }
func (s *fakeSink) Stop() error                         { s.start = false; return nil }
func (s *fakeSink) SendFrames(buf []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]float32(nil), buf...)
	s.sent = append(s.sent, cp)
}
func (s *fakeSink) TrySendFrames(buf []float32) (int, error) { return len(buf), nil }
func (s *fakeSink) ReceiveFrames([]float32) int              { return 0 }
func (s *fakeSink) EnumerateOutputs() ([]types.DeviceInfo, error) { return nil, nil }
func (s *fakeSink) EnumerateInputs() ([]types.DeviceInfo, error)  { return nil, nil }
func (s *fakeSink) DefaultOutput() (types.DeviceInfo, error)      { return types.DeviceInfo{}, nil }
func (s *fakeSink) DefaultInput() (types.DeviceInfo, error)       { return types.DeviceInfo{}, nil }
func (s *fakeSink) FramesPerBuffer() int                          { return 32 }
func (s *fakeSink) Dispose() error                                { return nil }

func (s *fakeSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSink) last() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// constSource is a non-clock-attached source that always delivers a
// constant value for every requested sample while Playing.
type constSource struct {
	id    types.SourceID
	state atomic.Int32
	value float32
}

func newConstSource(v float32) *constSource {
	s := &constSource{id: types.NewSourceID(), value: v}
	s.state.Store(int32(types.Playing))
	return s
}

func (s *constSource) ID() types.SourceID       { return s.id }
func (s *constSource) State() types.SourceState { return types.SourceState(s.state.Load()) }
func (s *constSource) Play() error              { s.state.Store(int32(types.Playing)); return nil }
func (s *constSource) ReadSamples(out []float32, frameCount int) int {
	for i := range out {
		out[i] = s.value
	}
	return frameCount
}
func (s *constSource) IsAttachedToClock() bool { return false }
func (s *constSource) ReadSamplesAtTime(t float64, out []float32, frameCount int) (bool, types.ReadResult) {
	return true, types.ReadResult{FramesRead: frameCount}
}

func newTestMixer(t *testing.T) (*Mixer, *fakeSink) {
	t.Helper()
	audio := types.AudioConfig{SampleRate: 48000, Channels: 2, FramesPerBuffer: 16}
	clock := masterclock.New(audio.SampleRate, masterclock.Realtime)
	sink := &fakeSink{}
	m := New(clock, sink, audio, Config{})
	return m, sink
}

func TestAddSourceEnforcesCap(t *testing.T) {
	audio := types.AudioConfig{SampleRate: 48000, Channels: 2, FramesPerBuffer: 16}
	clock := masterclock.New(audio.SampleRate, masterclock.Realtime)
	m := New(clock, &fakeSink{}, audio, Config{MaxSources: 1})

	require.NoError(t, m.AddSource(newConstSource(0.1)))
	err := m.AddSource(newConstSource(0.2))
	assert.ErrorIs(t, err, types.ErrSourceCapReached)
}

func TestRemoveSourceDetaches(t *testing.T) {
	m, _ := newTestMixer(t)
	src := newConstSource(0.1)
	require.NoError(t, m.AddSource(src))
	assert.Equal(t, 1, m.SourceCount())

	m.RemoveSource(src.ID())
	assert.Equal(t, 0, m.SourceCount())
}

func TestMixLoopAddsSourcesAndSendsToSink(t *testing.T) {
	m, sink := newTestMixer(t)
	require.NoError(t, m.AddSource(newConstSource(0.25)))
	require.NoError(t, m.AddSource(newConstSource(0.25)))

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return sink.sentCount() > 0 }, time.Second, time.Millisecond)

	buf := sink.last()
	require.NotEmpty(t, buf)
	for _, v := range buf {
		assert.InDelta(t, float32(0.5), v, 1e-6, "two 0.25 sources should sum to 0.5")
	}
}

func TestMasterVolumeScalesOutput(t *testing.T) {
	m, sink := newTestMixer(t)
	m.SetMasterVolume(0.5)
	require.NoError(t, m.AddSource(newConstSource(1.0)))

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return sink.sentCount() > 0 }, time.Second, time.Millisecond)
	buf := sink.last()
	for _, v := range buf {
		assert.InDelta(t, float32(0.5), v, 1e-6)
	}
}

func TestClockAdvancesEvenWithNoSources(t *testing.T) {
	m, sink := newTestMixer(t)
	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return sink.sentCount() > 2 }, time.Second, time.Millisecond)
	assert.Greater(t, m.clock.SamplePosition(), uint64(0))
}

func TestPeakLevelsReflectLoudestSample(t *testing.T) {
	m, sink := newTestMixer(t)
	require.NoError(t, m.AddSource(newConstSource(0.75)))

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return sink.sentCount() > 0 }, time.Second, time.Millisecond)
	levels := m.PeakLevels()
	for _, l := range levels {
		assert.InDelta(t, float32(0.75), l, 1e-5)
	}
}

type countingEffect struct {
	name    string
	calls   int
	enabled bool
}

func (e *countingEffect) Initialize(types.AudioConfig) error { return nil }
func (e *countingEffect) Process(buf []float32, frameCount int) error {
	e.calls++
	return nil
}
func (e *countingEffect) Enabled() bool      { return e.enabled }
func (e *countingEffect) SetEnabled(v bool)  { e.enabled = v }
func (e *countingEffect) Name() string       { return e.name }
func (e *countingEffect) Dispose() error     { return nil }

func TestMasterEffectsRunInRegistrationOrderWhenEnabled(t *testing.T) {
	m, sink := newTestMixer(t)
	require.NoError(t, m.AddSource(newConstSource(0.2)))

	e1 := &countingEffect{name: "a", enabled: true}
	e2 := &countingEffect{name: "b", enabled: false}
	m.AddMasterEffect(e1)
	m.AddMasterEffect(e2)

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool { return sink.sentCount() > 0 }, time.Second, time.Millisecond)
	assert.Greater(t, e1.calls, 0)
	assert.Equal(t, 0, e2.calls, "disabled effects must be skipped")
}
