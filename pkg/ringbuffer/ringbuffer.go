// Package ringbuffer implements the engine's C1 component: a lock-free
// single-producer single-consumer ring buffer of float32 samples.
package ringbuffer

import (
	"sync/atomic"

	"github.com/ownaudio/goaudio/pkg/types"
)

// Re-export common ringbuffer errors for backwards compatibility.
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// RingBuffer is a lock-free single-producer single-consumer ring buffer of
// float32 samples. It is the timeline between a File Source's decoder
// thread (producer) and the Mixer's mixing thread (consumer).
//
// Thread safety requirements:
//   - Write() must only be called by the producer thread.
//   - Read() must only be called by the consumer thread.
//
// It never reallocates after construction and never blocks: Write drops
// the tail of an oversized input (short write, the overflow policy), Read
// zero-fills the remainder of an undersized buffer (short read, the
// underflow policy) so the mixer can treat a short read as a buffer-
// underrun event rather than as an error.
type RingBuffer struct {
	buffer   []float32
	size     uint64 // must be power of 2
	mask     uint64 // size - 1, for efficient modulo
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer sized for the given number of float32 samples.
// Capacity is rounded up to the next power of 2 for efficient modulo.
//
// Per spec §9, size this to 4x frames-per-buffer x channels for a File
// Source ring, to keep the decoder resilient to scheduler stalls.
func New(capacity uint64) *RingBuffer {
	capacity = nextPowerOf2(capacity)

	return &RingBuffer{
		buffer: make([]float32, capacity),
		size:   capacity,
		mask:   capacity - 1,
	}
}

// Write writes samples to the ring buffer. It never blocks: it writes
// min(len(samples), AvailableWrite()) samples and returns the count
// actually written — a short write is the overflow policy (spec §4.1); the
// caller decides how to react (retry, drop, sleep).
//
// This method must only be called by the producer thread.
func (rb *RingBuffer) Write(samples []float32) int {
	dataLen := uint64(len(samples))
	if dataLen == 0 {
		return 0
	}

	toWrite := min(dataLen, rb.AvailableWrite())
	if toWrite == 0 {
		return 0
	}

	writePos := rb.writePos.Load()

	start := writePos & rb.mask
	end := (writePos + toWrite) & rb.mask

	if end > start {
		copy(rb.buffer[start:end], samples[:toWrite])
	} else {
		firstChunk := rb.size - start
		copy(rb.buffer[start:], samples[:firstChunk])
		copy(rb.buffer[:end], samples[firstChunk:toWrite])
	}

	rb.writePos.Store(writePos + toWrite)

	return int(toWrite)
}

// Read reads up to len(dest) samples from the ring buffer into dest. If
// fewer samples are available than requested, the remainder of dest is
// zero-filled and the short count is returned — this is the underflow
// policy (spec §4.1); the mixer interprets a short read as a buffer-
// underrun event, not an error.
//
// This method must only be called by the consumer thread.
func (rb *RingBuffer) Read(dest []float32) int {
	dataLen := uint64(len(dest))
	if dataLen == 0 {
		return 0
	}

	toRead := min(dataLen, rb.AvailableRead())
	readPos := rb.readPos.Load()

	if toRead > 0 {
		start := readPos & rb.mask
		end := (readPos + toRead) & rb.mask

		if end > start {
			copy(dest[:toRead], rb.buffer[start:end])
		} else {
			firstChunk := rb.size - start
			copy(dest[:firstChunk], rb.buffer[start:])
			copy(dest[firstChunk:toRead], rb.buffer[:end])
		}

		rb.readPos.Store(readPos + toRead)
	}

	if toRead < dataLen {
		clear(dest[toRead:])
	}

	return int(toRead)
}

// AvailableWrite returns the number of samples available for writing.
func (rb *RingBuffer) AvailableWrite() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return rb.size - (writePos - readPos)
}

// AvailableRead returns the number of samples available for reading.
func (rb *RingBuffer) AvailableRead() uint64 {
	writePos := rb.writePos.Load()
	readPos := rb.readPos.Load()
	return writePos - readPos
}

// Capacity returns the total capacity of the ring buffer, in samples.
func (rb *RingBuffer) Capacity() uint64 {
	return rb.size
}

// Clear resets the ring buffer by resetting read and write positions. Not
// safe to call concurrently with Read/Write; a caller doing a seek must
// hold off the producer and consumer first.
func (rb *RingBuffer) Clear() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

// nextPowerOf2 rounds up to the next power of 2.
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
