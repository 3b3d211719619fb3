// Package stream implements the per-stream packet pipelines of the
// receiver: one independent read loop per negotiated socket (realtime
// audio, buffered audio, video, plus the event and control sideband
// channels), and the Manager that starts and tears them down per
// session.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zsiec/airwave/internal/rtsp"
)

// Runner is one processor's read loop. Run blocks until the socket
// fails (the returned error) or ctx is cancelled (nil).
type Runner interface {
	Run(ctx context.Context) error
}

type managed struct {
	id     uint64
	kind   rtsp.StreamID
	cancel context.CancelFunc
	done   chan struct{}
	stats  func() StatsSnapshot
}

// Manager tracks the running processors of one session by stream ID and
// maps TEARDOWN requests onto their cancellation handles. Each processor
// runs on its own goroutine; the manager is the only holder of its
// cancel function.
type Manager struct {
	log     *slog.Logger
	mu      sync.RWMutex
	streams map[uint64]*managed
}

// NewManager creates a stream manager. If log is nil, slog.Default()
// is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log.With("component", "stream-manager"),
		streams: make(map[uint64]*managed),
	}
}

// Start registers a processor under the given stream ID and runs it on
// its own goroutine, cancelled either by Teardown or when ctx ends.
// Returns ErrDuplicateStream if the ID is already active.
func (m *Manager) Start(ctx context.Context, id uint64, kind rtsp.StreamID, r Runner) error {
	runCtx, cancel := context.WithCancel(ctx)

	s := &managed{
		id:     id,
		kind:   kind,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if sp, ok := r.(interface{ Stats() StatsSnapshot }); ok {
		s.stats = sp.Stats
	}

	m.mu.Lock()
	if _, exists := m.streams[id]; exists {
		m.mu.Unlock()
		cancel()
		m.log.Warn("rejecting duplicate stream", "id", id, "kind", kind)
		return ErrDuplicateStream
	}
	m.streams[id] = s
	m.mu.Unlock()

	m.log.Info("stream started", "id", id, "kind", kind)
	go func() {
		defer close(s.done)
		if err := r.Run(runCtx); err != nil {
			m.log.Error("stream failed", "id", id, "kind", kind, "error", err)
		} else {
			m.log.Info("stream stopped", "id", id, "kind", kind)
		}
		m.remove(id)
	}()
	return nil
}

func (m *Manager) remove(id uint64) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// Teardown stops the processor registered under id and waits for its
// loop to exit and release its socket. Returns false if no such stream
// is active.
func (m *Manager) Teardown(id uint64) bool {
	m.mu.RLock()
	s, ok := m.streams[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	s.cancel()
	<-s.done
	m.log.Info("stream torn down", "id", id, "kind", s.kind)
	return true
}

// TeardownAll stops every active processor and waits for each to exit.
func (m *Manager) TeardownAll() {
	m.mu.RLock()
	active := make([]*managed, 0, len(m.streams))
	for _, s := range m.streams {
		active = append(active, s)
	}
	m.mu.RUnlock()

	for _, s := range active {
		s.cancel()
		<-s.done
	}
	if len(active) > 0 {
		m.log.Info("session torn down", "streams", len(active))
	}
}

// Apply executes a decoded TEARDOWN: the named streams, or the whole
// session when the request carries no stream list.
func (m *Manager) Apply(td *rtsp.Teardown) {
	if td.All() {
		m.TeardownAll()
		return
	}
	for _, req := range td.Streams {
		if !m.Teardown(req.ID) {
			m.log.Warn("teardown for unknown stream", "id", req.ID, "kind", req.Type)
		}
	}
}

// Info describes one active stream.
type Info struct {
	ID    uint64
	Kind  rtsp.StreamID
	Stats StatsSnapshot
}

// List returns a snapshot of all active streams and their counters.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.streams))
	for _, s := range m.streams {
		info := Info{ID: s.id, Kind: s.kind}
		if s.stats != nil {
			info.Stats = s.stats()
		}
		infos = append(infos, info)
	}
	return infos
}
