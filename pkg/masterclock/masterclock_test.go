package masterclock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewStartsAtZero(t *testing.T) {
	c := New(48000, Realtime)
	assert.EqualValues(t, 0, c.SamplePosition())
	assert.Equal(t, float64(0), c.CurrentTimestamp())
	assert.Equal(t, Realtime, c.Mode())
}

func TestAdvanceMovesPositionAndTimestamp(t *testing.T) {
	c := New(48000, Realtime)
	c.Advance(24000)
	assert.EqualValues(t, 24000, c.SamplePosition())
	assert.Equal(t, 0.5, c.CurrentTimestamp())
}

func TestModeStringAndSwitch(t *testing.T) {
	c := New(48000, Realtime)
	assert.Equal(t, "realtime", c.Mode().String())

	c.SetMode(Offline)
	assert.Equal(t, Offline, c.Mode())
	assert.Equal(t, "offline", c.Mode().String())
}

// TestSamplePositionNonDecreasing checks spec §8 invariant 2: sample
// position is non-decreasing across any two observations made by the same
// thread, even with concurrent Advance calls from a single writer and many
// concurrent readers.
func TestSamplePositionNonDecreasing(t *testing.T) {
	c := New(48000, Realtime)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Advance(128)
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := uint64(0)
			for {
				select {
				case <-stop:
					return
				default:
				}
				cur := c.SamplePosition()
				assert.GreaterOrEqual(t, cur, last)
				last = cur
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 128000, c.SamplePosition())
}

func TestAdvanceAccumulatesAcrossArbitrarySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := rapid.IntRange(8000, 192000).Draw(t, "sampleRate")
		c := New(sampleRate, Realtime)

		steps := rapid.SliceOfN(rapid.Uint64Range(0, 8192), 0, 50).Draw(t, "steps")
		var total uint64
		for _, s := range steps {
			c.Advance(s)
			total += s
			assert.Equal(t, total, c.SamplePosition())
		}
	})
}
