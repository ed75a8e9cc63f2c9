package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewRoundsToPowerOf2(t *testing.T) {
	tests := []struct {
		input    uint64
		expected uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{100, 128},
		{2048, 2048},
	}

	for _, tt := range tests {
		rb := New(tt.input)
		assert.Equalf(t, tt.expected, rb.Capacity(), "New(%d)", tt.input)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rb := New(16)

	samples := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	n := rb.Write(samples)
	assert.Equal(t, len(samples), n)
	assert.EqualValues(t, 8, rb.AvailableRead())
	assert.EqualValues(t, 8, rb.AvailableWrite())

	dest := make([]float32, 8)
	n = rb.Read(dest)
	assert.Equal(t, 8, n)
	assert.Equal(t, samples, dest)
}

func TestWriteShortOnOverflow(t *testing.T) {
	rb := New(4)

	n := rb.Write([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n, "overflow must be a short write, not a drop of everything")
}

func TestReadZeroFillsShortfall(t *testing.T) {
	rb := New(8)
	rb.Write([]float32{9, 9})

	dest := make([]float32, 4)
	n := rb.Read(dest)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{9, 9, 0, 0}, dest, "short read must zero-fill the remainder")
}

func TestClearResetsPositions(t *testing.T) {
	rb := New(8)
	rb.Write([]float32{1, 2, 3})
	rb.Clear()
	assert.EqualValues(t, 0, rb.AvailableRead())
	assert.Equal(t, rb.Capacity(), rb.AvailableWrite())
}

// TestAccountingInvariant checks spec §8 invariant 4:
// available_read + free == capacity, always, across arbitrary write/read
// sequences of arbitrary sizes.
func TestAccountingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.Uint64Range(1, 4096).Draw(t, "capacity")
		rb := New(capacity)

		ops := rapid.SliceOfN(rapid.IntRange(-2048, 2048), 0, 50).Draw(t, "ops")
		for _, op := range ops {
			if op >= 0 {
				rb.Write(make([]float32, op))
			} else {
				rb.Read(make([]float32, -op))
			}

			assert.Equal(t, rb.Capacity(), rb.AvailableRead()+rb.AvailableWrite(),
				"available_read + available_write must always equal capacity")
		}
	})
}

// TestDataIntegrityAcrossWraps checks that Read never returns more samples
// than were actually written, and that every delivered sample matches what
// was written (no corruption across wraps).
func TestDataIntegrityAcrossWraps(t *testing.T) {
	rb := New(4)
	var written, read []float32

	src := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for i := 0; i < len(src); i += 3 {
		end := min(i+3, len(src))
		chunk := src[i:end]
		n := rb.Write(chunk)
		written = append(written, chunk[:n]...)

		dest := make([]float32, 2)
		n = rb.Read(dest)
		read = append(read, dest[:n]...)
	}

	// Drain remainder.
	for {
		dest := make([]float32, 2)
		n := rb.Read(dest)
		if n == 0 {
			break
		}
		read = append(read, dest[:n]...)
	}

	assert.Equal(t, written, read)
}
