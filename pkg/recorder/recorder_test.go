package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ownaudio/goaudio/pkg/types"
)

func TestWriteSamplesThenCloseProducesNonEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	audio := types.AudioConfig{SampleRate: 48000, Channels: 2, FramesPerBuffer: 256}

	r, err := New(path, audio)
	require.NoError(t, err)

	require.NoError(t, r.WriteSamples([]float32{0.1, -0.1, 0.2, -0.2}))
	require.NoError(t, r.WriteSamples([]float32{0.3, -0.3}))
	require.NoError(t, r.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	audio := types.AudioConfig{SampleRate: 44100, Channels: 1, FramesPerBuffer: 128}

	r, err := New(path, audio)
	require.NoError(t, err)
	require.NoError(t, r.WriteSamples([]float32{0.5}))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
