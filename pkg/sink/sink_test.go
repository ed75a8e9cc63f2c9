package sink

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFloat32LERoundTrips(t *testing.T) {
	src := []float32{1.5, -2.25, 0, 3.125}
	dst := make([]byte, len(src)*4)

	n := encodeFloat32LE(dst, src)
	assert.Equal(t, len(dst), n)

	for i, want := range src {
		bits := uint32(dst[i*4]) | uint32(dst[i*4+1])<<8 | uint32(dst[i*4+2])<<16 | uint32(dst[i*4+3])<<24
		got := math.Float32frombits(bits)
		assert.Equal(t, want, got)
	}
}

func TestEncodeFloat32LETruncatesToShorterBuffer(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	dst := make([]byte, 8) // room for only 2 samples

	n := encodeFloat32LE(dst, src)
	assert.Equal(t, 8, n)
}

func TestClearBytesZeroesBuffer(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	clearBytes(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}
