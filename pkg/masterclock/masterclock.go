// Package masterclock implements the engine's C4 component: the single
// monotonic timeline every attached source renders against. It exposes one
// writer operation, Advance, callable only by the Mixer's mixing thread,
// and lock-free readers for every source.
package masterclock

import "sync/atomic"

// Mode selects how the Mixer paces Advance calls (spec §4.4/§4.7).
type Mode int

const (
	// Realtime: the sink's blocking send is the pacing signal; advancement
	// is unconditional once a mixer cycle completes.
	Realtime Mode = iota
	// Offline: the mixer waits for sources before advancing, trading
	// latency for bit-reproducible renders.
	Offline
)

func (m Mode) String() string {
	if m == Offline {
		return "offline"
	}
	return "realtime"
}

// Clock is the Master Clock: a monotonically non-decreasing frame counter
// plus the sample rate needed to derive a timestamp from it.
//
// sample_position is the only mutable state and is read far more often
// than it is written (every source reads it once per mixer cycle), so it
// is a plain atomic counter rather than anything mutex-guarded.
type Clock struct {
	samplePosition atomic.Uint64
	sampleRate     int
	mode           atomic.Int32
}

// New creates a clock at sample position zero, in the given mode.
func New(sampleRate int, mode Mode) *Clock {
	c := &Clock{sampleRate: sampleRate}
	c.mode.Store(int32(mode))
	return c
}

// Advance moves the clock forward by frames. Only the mixer's mixing
// thread may call this (spec §4.4: "single operation advance(frames)
// callable only by the mixer"); callers elsewhere must treat the clock as
// read-only.
func (c *Clock) Advance(frames uint64) {
	c.samplePosition.Add(frames)
}

// SamplePosition returns the current monotonic frame count.
func (c *Clock) SamplePosition() uint64 {
	return c.samplePosition.Load()
}

// CurrentTimestamp returns the current position in seconds, derived from
// sample_position and the configured sample rate.
func (c *Clock) CurrentTimestamp() float64 {
	if c.sampleRate == 0 {
		return 0
	}
	return float64(c.samplePosition.Load()) / float64(c.sampleRate)
}

// Mode returns the clock's current rendering mode.
func (c *Clock) Mode() Mode {
	return Mode(c.mode.Load())
}

// SetMode switches the clock's rendering mode. Safe to call between mixer
// cycles; not meant to change mid-cycle.
func (c *Clock) SetMode(m Mode) {
	c.mode.Store(int32(m))
}

// SampleRate returns the clock's configured sample rate.
func (c *Clock) SampleRate() int {
	return c.sampleRate
}
