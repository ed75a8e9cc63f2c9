package pcmconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToFloat32Sixteen(t *testing.T) {
	raw := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	out, err := BytesToFloat32(nil, raw, 16)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 0.999969, out[1], 1e-4)
	assert.InDelta(t, -1.0, out[2], 1e-6)
}

func TestBytesToFloat32RejectsUnsupportedDepth(t *testing.T) {
	_, err := BytesToFloat32(nil, []byte{1, 2, 3}, 12)
	assert.Error(t, err)
}

func TestFloat32ToInt16LERoundTrips(t *testing.T) {
	src := []float32{0.5, -0.5, 1.0, -1.0}
	raw := Float32ToInt16LE(nil, src)
	back := Int16LEToFloat32(nil, raw)
	require.Len(t, back, len(src))
	for i := range src {
		assert.InDelta(t, float64(src[i]), float64(back[i]), 0.001)
	}
}

func TestFloat32ToInt16LEClampsOverRange(t *testing.T) {
	raw := Float32ToInt16LE(nil, []float32{2.0, -2.0})
	back := Int16LEToFloat32(nil, raw)
	assert.InDelta(t, 1.0, float64(back[0]), 0.001)
	assert.InDelta(t, -1.0, float64(back[1]), 0.001)
}

func TestBytesPerSample(t *testing.T) {
	assert.Equal(t, 2, BytesPerSample(16))
	assert.Equal(t, 4, BytesPerSample(32))
}
