// Package framepool implements the engine's C2 component: a thread-safe
// pool of reusable fixed-size float32 buffers, keyed by size, for keeping a
// decoder's hot path allocation-free. The pool has no capacity bound.
package framepool

import (
	"sync"
	"sync/atomic"
)

// Pool is a pool of []float32 buffers, one sync.Pool per distinct buffer
// size. No sub-pool has a capacity limit: Return never drops a buffer
// because a pool is full, and the runtime may discard pooled buffers at any
// garbage collection. rent/return are meant to be called once per decode
// iteration from the decoder thread; a size that has never been rented
// before gets its own sync.Pool lazily.
//
// Invariants (spec §3 "Frame Pool"): rent/return calls balance at steady
// state; a released buffer returns to the pool for reuse; when a size's
// pool is empty, a fresh allocation is permitted but counted separately so
// callers can observe pool pressure.
type Pool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool

	rented  atomic.Uint64
	reused  atomic.Uint64
	fresh   atomic.Uint64
	returns atomic.Uint64
}

// New creates an empty frame pool. Sub-pools are created lazily per size.
func New() *Pool {
	return &Pool{pools: make(map[int]*sync.Pool)}
}

// Buffer is a rented []float32 buffer tagged with the PTS it will carry and
// the size it belongs to, so Return can route it back to the right
// sub-pool.
type Buffer struct {
	PTS   float64
	Audio []float32
	size  int
}

// Rent returns a buffer of exactly sampleCount float32s, reusing a pooled
// allocation when one of that size is available, or allocating fresh
// (counted) when the pool is empty for that size.
func (p *Pool) Rent(pts float64, sampleCount int) *Buffer {
	p.rented.Add(1)

	sp := p.subPool(sampleCount)
	if v := sp.Get(); v != nil {
		buf := v.(*Buffer)
		buf.PTS = pts
		// Reused buffers are already the right size (sub-pool is keyed by size).
		for i := range buf.Audio {
			buf.Audio[i] = 0
		}
		p.reused.Add(1)
		return buf
	}

	p.fresh.Add(1)
	return &Buffer{
		PTS:   pts,
		Audio: make([]float32, sampleCount),
		size:  sampleCount,
	}
}

// Return re-inserts a rented buffer into the sub-pool for its size,
// creating that sub-pool if none exists yet. A nil buffer is ignored.
func (p *Pool) Return(buf *Buffer) {
	if buf == nil {
		return
	}
	p.returns.Add(1)
	p.subPool(buf.size).Put(buf)
}

func (p *Pool) subPool(size int) *sync.Pool {
	p.mu.Lock()
	sp, ok := p.pools[size]
	if !ok {
		sp = &sync.Pool{}
		p.pools[size] = sp
	}
	p.mu.Unlock()
	return sp
}

// Stats reports the rent/return/fresh-allocation counters used to verify
// spec §8 invariant 5 (rent and return calls agree at steady state) and to
// observe pool pressure.
type Stats struct {
	Rented       uint64
	Reused       uint64
	FreshAllocs  uint64
	Returned     uint64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Rented:      p.rented.Load(),
		Reused:      p.reused.Load(),
		FreshAllocs: p.fresh.Load(),
		Returned:    p.returns.Load(),
	}
}
