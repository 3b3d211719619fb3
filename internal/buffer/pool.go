// Package buffer provides a fixed-capacity byte arena that hands out
// reference-counted, zero-copy slices sized per packet. Regions are
// reused once every holder of the slice has released it, so packets can
// cross an asynchronous handoff boundary without copying.
package buffer

import (
	"sync"
	"sync/atomic"
)

// Pool is a ring-buffer arena with a monotonically advancing write
// cursor. Allocate never returns a region overlapping a slice that is
// still referenced; when the ring cannot place a request it falls back
// to an ordinary heap allocation for that one slice, so Allocate never
// blocks a read loop and never fails.
//
// Allocation and reclamation are serialized internally. Access to the
// bytes of an issued slice is not: exactly one component may touch a
// slice at a time (the producer while filling, the sink while consuming).
type Pool struct {
	mu      sync.Mutex
	backing []byte
	head    int
	live    []region

	allocs atomic.Int64
	spills atomic.Int64
	inUse  int
}

type region struct {
	off, n int
}

// NewPool creates a pool with the given backing capacity in bytes.
func NewPool(capacity int) *Pool {
	return &Pool{backing: make([]byte, capacity)}
}

// Allocate returns a slice of exactly n bytes. The caller owns the slice
// until it hands it off; the region is recycled when the last holder
// calls Release.
func (p *Pool) Allocate(n int) *Slice {
	p.allocs.Add(1)

	p.mu.Lock()
	off, ok := p.place(n)
	if ok {
		p.live = append(p.live, region{off, n})
		p.head = off + n
		p.inUse += n
		p.mu.Unlock()
		s := &Slice{data: p.backing[off : off+n : off+n], pool: p, off: off}
		s.refs.Store(1)
		return s
	}
	p.mu.Unlock()

	// Ring is too fragmented or too full: spill this one slice to the
	// heap rather than stalling the caller's socket loop.
	p.spills.Add(1)
	s := &Slice{data: make([]byte, n), off: -1}
	s.refs.Store(1)
	return s
}

// place finds an offset for n bytes that overlaps no live region,
// trying the write cursor first and wrapping to the start otherwise.
// Caller holds p.mu.
func (p *Pool) place(n int) (int, bool) {
	if n > len(p.backing) {
		return 0, false
	}
	if len(p.live) == 0 {
		p.head = 0
		return 0, true
	}
	if p.head+n <= len(p.backing) && !p.overlaps(p.head, n) {
		return p.head, true
	}
	if !p.overlaps(0, n) {
		return 0, true
	}
	return 0, false
}

func (p *Pool) overlaps(off, n int) bool {
	for _, r := range p.live {
		if off < r.off+r.n && r.off < off+n {
			return true
		}
	}
	return false
}

// reclaim returns a region to the ring after its last reference drops.
func (p *Pool) reclaim(off, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.live {
		if r.off == off && r.n == n {
			p.live = append(p.live[:i], p.live[i+1:]...)
			p.inUse -= n
			return
		}
	}
}

// Stats is a snapshot of pool usage counters.
type Stats struct {
	Capacity   int
	InUseBytes int
	LiveSlices int
	Allocs     int64
	Spills     int64
}

// Stats returns a snapshot of the pool's usage counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	inUse, liveN := p.inUse, len(p.live)
	p.mu.Unlock()
	return Stats{
		Capacity:   len(p.backing),
		InUseBytes: inUse,
		LiveSlices: liveN,
		Allocs:     p.allocs.Load(),
		Spills:     p.spills.Load(),
	}
}

// Slice is a reference-counted view into the pool's backing storage (or
// a private heap allocation when the pool spilled). The bytes stay valid
// and unchanged by the pool until the last holder releases it.
type Slice struct {
	data []byte
	pool *Pool
	off  int
	refs atomic.Int32
}

// Bytes returns the underlying byte slice.
func (s *Slice) Bytes() []byte { return s.data }

// Len returns the length of the slice.
func (s *Slice) Len() int { return len(s.data) }

// Retain adds a reference, for handing the slice to an additional holder.
func (s *Slice) Retain() { s.refs.Add(1) }

// Release drops a reference. When the count reaches zero the region is
// returned to the pool for reuse; heap-spilled slices are left to the GC.
func (s *Slice) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if s.pool != nil {
		s.pool.reclaim(s.off, len(s.data))
	}
}
