package stream

import (
	"sync/atomic"
	"time"
)

// Stats collects per-processor counters, updated by the read loop and
// snapshotted by the session layer for diagnostics.
type Stats struct {
	startedAt time.Time
	packets   atomic.Int64
	bytes     atomic.Int64
	drops     atomic.Int64
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) record(n int) {
	s.packets.Add(1)
	s.bytes.Add(int64(n))
}

func (s *Stats) drop() {
	s.drops.Add(1)
}

// StatsSnapshot is a point-in-time copy of a processor's counters.
type StatsSnapshot struct {
	Packets  int64 `json:"packets"`
	Bytes    int64 `json:"bytes"`
	Drops    int64 `json:"drops"`
	UptimeMs int64 `json:"uptimeMs"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Packets:  s.packets.Load(),
		Bytes:    s.bytes.Load(),
		Drops:    s.drops.Load(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
}
