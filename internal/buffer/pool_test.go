package buffer

import (
	"bytes"
	"sync"
	"testing"
)

func TestPool_ReusesReleasedRegions(t *testing.T) {
	p := NewPool(64)

	s1 := p.Allocate(64)
	s1.Release()
	s2 := p.Allocate(64)
	s2.Release()

	if got := p.Stats().Spills; got != 0 {
		t.Errorf("full-capacity reuse should not spill, got %d spills", got)
	}
}

func TestPool_NeverOverlapsLiveSlices(t *testing.T) {
	p := NewPool(256)

	type alive struct {
		s    *Slice
		fill byte
	}
	var held []alive

	// Churn allocations while keeping several alive, each stamped with a
	// distinct byte. Any overlap would corrupt an earlier stamp.
	for i := 0; i < 200; i++ {
		s := p.Allocate(32)
		fill := byte(i)
		for j := range s.Bytes() {
			s.Bytes()[j] = fill
		}
		held = append(held, alive{s, fill})

		if len(held) > 5 {
			old := held[0]
			held = held[1:]
			if !bytes.Equal(old.s.Bytes(), bytes.Repeat([]byte{old.fill}, 32)) {
				t.Fatalf("iteration %d: slice stamped %#x was overwritten", i, old.fill)
			}
			old.s.Release()
		}
	}
}

func TestPool_SliceStableAcrossCapacityExceedingChurn(t *testing.T) {
	p := NewPool(128)

	pinned := p.Allocate(32)
	for i := range pinned.Bytes() {
		pinned.Bytes()[i] = 0xAB
	}

	// Allocate far more than total capacity while the pinned slice lives.
	for i := 0; i < 50; i++ {
		s := p.Allocate(64)
		for j := range s.Bytes() {
			s.Bytes()[j] = 0xFF
		}
		s.Release()
	}

	for i, b := range pinned.Bytes() {
		if b != 0xAB {
			t.Fatalf("pinned byte %d changed to %#x", i, b)
		}
	}
	pinned.Release()
}

func TestPool_SpillsWhenRingIsFull(t *testing.T) {
	p := NewPool(64)

	s1 := p.Allocate(64)
	s2 := p.Allocate(16)

	if got := p.Stats().Spills; got != 1 {
		t.Errorf("expected exactly 1 spill, got %d", got)
	}
	if s2.Len() != 16 {
		t.Errorf("spilled slice has len %d, want 16", s2.Len())
	}
	s1.Release()
	s2.Release()
}

func TestPool_OversizeRequestSpills(t *testing.T) {
	p := NewPool(16)
	s := p.Allocate(1024)
	if s.Len() != 1024 {
		t.Fatalf("oversize allocate returned len %d", s.Len())
	}
	if got := p.Stats().Spills; got != 1 {
		t.Errorf("expected 1 spill, got %d", got)
	}
	s.Release()
}

func TestSlice_RetainDelaysReclamation(t *testing.T) {
	p := NewPool(32)

	s := p.Allocate(32)
	s.Retain()
	s.Release()

	if got := p.Stats().InUseBytes; got != 32 {
		t.Errorf("region reclaimed with a holder outstanding, in-use = %d", got)
	}
	s.Release()
	if got := p.Stats().InUseBytes; got != 0 {
		t.Errorf("region not reclaimed after final release, in-use = %d", got)
	}
}

func TestPool_ConcurrentAllocate(t *testing.T) {
	p := NewPool(4096)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s := p.Allocate(17)
				s.Bytes()[0] = 1
				s.Release()
			}
		}()
	}
	wg.Wait()

	st := p.Stats()
	if st.InUseBytes != 0 || st.LiveSlices != 0 {
		t.Errorf("pool not drained after concurrent churn: %+v", st)
	}
}
