package framepool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRentReturnsZeroedBuffer(t *testing.T) {
	p := New()

	buf := p.Rent(0.5, 4)
	assert.Len(t, buf.Audio, 4)
	assert.Equal(t, []float32{0, 0, 0, 0}, buf.Audio)
	assert.Equal(t, 0.5, buf.PTS)
}

func TestReturnedBufferIsReusedAndZeroed(t *testing.T) {
	p := New()

	buf := p.Rent(1.0, 4)
	copy(buf.Audio, []float32{1, 2, 3, 4})
	p.Return(buf)

	second := p.Rent(2.0, 4)
	assert.Equal(t, []float32{0, 0, 0, 0}, second.Audio, "reused buffer must be zeroed")
	assert.Equal(t, 2.0, second.PTS)

	stats := p.Stats()
	assert.EqualValues(t, 2, stats.Rented)
	assert.EqualValues(t, 1, stats.Reused)
	assert.EqualValues(t, 1, stats.FreshAllocs)
	assert.EqualValues(t, 1, stats.Returned)
}

func TestDistinctSizesGetDistinctSubPools(t *testing.T) {
	p := New()

	a := p.Rent(0, 4)
	b := p.Rent(0, 8)
	p.Return(a)
	p.Return(b)

	c := p.Rent(0, 4)
	assert.Len(t, c.Audio, 4)

	stats := p.Stats()
	assert.EqualValues(t, 2, stats.FreshAllocs)
	assert.EqualValues(t, 1, stats.Reused)
}

func TestNilReturnIsNoop(t *testing.T) {
	p := New()
	assert.NotPanics(t, func() { p.Return(nil) })
	assert.EqualValues(t, 0, p.Stats().Returned)
}

// TestRentReturnAccounting checks spec §8 invariant 5: across an arbitrary
// sequence of rent/return operations, rented == reused+freshAllocs.
func TestRentReturnAccounting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := New()
		sizes := rapid.SliceOfN(rapid.IntRange(1, 64), 1, 8).Draw(t, "sizes")

		var pending []*Buffer
		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 0, 100).Draw(t, "ops")
		for i, op := range ops {
			size := sizes[i%len(sizes)]
			if op == 0 || len(pending) == 0 {
				pending = append(pending, p.Rent(float64(i), size))
			} else {
				buf := pending[len(pending)-1]
				pending = pending[:len(pending)-1]
				p.Return(buf)
			}
		}

		stats := p.Stats()
		assert.Equal(t, stats.Rented, stats.Reused+stats.FreshAllocs,
			"every rent is satisfied by exactly one reuse or one fresh allocation")
	})
}

func TestConcurrentRentReturnIsRaceFree(t *testing.T) {
	p := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := p.Rent(float64(j), 16)
				buf.Audio[0] = 1
				p.Return(buf)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.EqualValues(t, 1600, stats.Rented)
	assert.EqualValues(t, stats.Rented, stats.Returned)
}
